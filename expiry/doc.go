// Package expiry ends sessions that can no longer be used.
//
// Teardown is the single place a session is forcibly ended: it clears the
// credential store, tells the user and sends the application back to the
// sign-in entry point. Scheduler arms timers from the advisory expiry of the
// stored token so that a session is refreshed ahead of time and torn down
// just before the server would start rejecting it.
package expiry
