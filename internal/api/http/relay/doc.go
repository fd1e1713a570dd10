// Package relay implements the HTTP transport of the cry relay.
//
// It decodes sensor triggers and Telegram webhook updates, hands them to a
// provided business-service interface and encodes the JSON responses. Bad
// input is answered with the safest no-op rather than an error.
package relay
