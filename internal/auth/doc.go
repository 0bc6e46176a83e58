// Package auth drives the portal CAPTCHA login as a bounded state machine.
//
// A run terminates in one of three outcomes: the authenticated menu appeared,
// the portal rejected the configured number of attempts, or the login page
// never loaded. CAPTCHA recognition failures reload and retry without
// consuming a login attempt; they are bounded separately so the loop stays
// finite even against an unreadable CAPTCHA stream.
package auth
