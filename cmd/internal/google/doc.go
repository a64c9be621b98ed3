// Package google links user accounts to Google and syncs tasks into a dedicated
// Google Calendar.
//
// OAuth runs the authorization-code flow with offline access so a refresh token is
// issued. Calendar calls refresh the access token when needed, and a refreshed
// token is written back through TokenSaver.
package google
