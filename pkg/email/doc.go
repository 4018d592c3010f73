// Package email delivers transactional mail through Postmark
// (github.com/mrz1836/postmark). DevSender writes messages to disk instead so
// local runs need no Postmark account.
package email
