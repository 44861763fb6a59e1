// Package credentials resolves the WHOOP client identity (client id, client
// secret and redirect URI) from, in order of precedence, the environment,
// the persisted settings document, and an interactive prompt.
//
// Values obtained from the prompt are saved back to the settings document so
// the next run resolves without asking.
package credentials
