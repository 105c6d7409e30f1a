// Package admin manages cluster definitions: clusters, state models,
// participants, resources, constraints and the pause signal.
//
// Every operation is a read-modify-write of one property through the data
// accessor. Controllers pick changes up on their next pass.
package admin
