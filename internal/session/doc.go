// Package session provides named database sessions over SQLite files.
//
// A Session owns one connection to one file and exposes raw script execution,
// single parameterised writes and reads, transactional batches, the schema
// version and the file lifecycle (open, close, delete). Parameters and
// results are value.Value, so only the five SQLite storage classes ever cross
// the boundary.
//
// The Registry maps names to live sessions with an atomic get-or-create, and
// derives each file path from the name under one storage directory.
//
// Usage:
//
//	reg, err := session.NewRegistry(session.Config{Dir: "/var/lib/sqlbridge"})
//	if err != nil {
//	    return err
//	}
//	defer reg.Shutdown()
//
//	s, err := reg.Open(ctx, "notes")
//	res, err := s.RunOne(ctx, "INSERT INTO t(x) VALUES (?)", []value.Value{value.Integer(42)})
//	rows, err := s.QueryOne(ctx, "SELECT x FROM t", nil)
package session
