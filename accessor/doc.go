// Package accessor maps typed cluster properties to store paths and back.
//
// Every PropertyType has a fixed path template below the cluster root and a
// persistence flag. KeyBuilder creates keys; a key with fewer parameters than
// its template addresses the parent node, which is how sets of properties are
// listed:
//
//	keys := accessor.NewKeyBuilder("mycluster")
//	keys.IdealState("TestDB").Path()            // "/mycluster/IDEALSTATES/TestDB"
//	keys.CurrentStates("p1", "s1").Path()       // "/mycluster/INSTANCES/p1/CURRENTSTATES/s1"
//
// DataAccessor performs CRUD through a store.Store and decodes records with
// an explicit Registry of decoders. Missing, timed-out and undecodable reads
// are absent results rather than errors, so a reconciliation pass degrades
// instead of aborting.
package accessor
