// Package session persists authenticated browser cookies between runs.
//
// Cookies live in a JSON array file (xscraper_cookies.json by default).
// Loading is forgiving: a missing or corrupt file means "no session", and a
// single bad cookie never prevents the others from being restored. Saving
// writes a temp file in the same directory and renames it over the old one.
package session
