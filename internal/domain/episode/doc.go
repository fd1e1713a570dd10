// Package episode contains the cry-episode domain: the detector state, the
// pure decision function that turns a trigger into an outcome plus a list of
// side-effect intents, the operator commands and the durable record type.
//
// Nothing here performs I/O or takes locks. The relay service owns a State,
// serializes access to it and executes the intents it returns.
package episode
