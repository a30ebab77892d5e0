// Package keyspace classifies key ranges against the reserved system and
// special administrative keyspaces.
//
// Classification is a pure function of a range's byte boundaries: a range is
// checked by interval overlap against the system prefix and a fixed table of
// special administrative sub-ranges, never by string prefix matching, so
// arbitrary sub-range queries are handled correctly.
package keyspace
