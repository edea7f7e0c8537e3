// Package install manages the one-shot install prompt flow.
//
// A Platform adapter reports whether desktop integration is available,
// whether the workspace entry is installed, and whether the current
// process was launched through it. The Flow arms a single prompt when
// integration is available and nothing is installed yet:
//
//	no prompt → prompt ready → (consume) → accepted → retired
//	                        ↘ dismissed → no prompt
//
// Acceptance retires the prompt for good. Dismissal returns to no
// prompt; only a fresh platform signal (an external uninstall) arms a
// new one. An external install always forces installed state and
// retires any armed prompt, covering installs that bypass the flow.
package install
