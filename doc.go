// Package crosspost implements multi-platform social publishing: users
// connect LinkedIn (OAuth2) and Bluesky (app password) accounts, and a
// single publish request fans out to every selected platform with
// independent per-platform results.
package crosspost
