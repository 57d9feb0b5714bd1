// Package orm maps Go structs onto relational tables.
//
// A stored type is a struct embedding Mutable or Immutable. Its exported
// fields become columns: strings, integers, booleans, floats and time.Time
// map onto fixed column types, values of types registered with RegisterType
// go through their adapter and converter, Reference[T] fields hold a to-one
// foreign key and List[T] fields hold an ordered one-to-many relation whose
// owner key and order live in two companion columns on the child table.
//
//	type Vessel struct {
//		orm.Mutable
//		Name  string
//		Class orm.Reference[*VesselClass]
//		Crew  orm.List[*Crew]
//	}
//
// A Store synthesizes the schema on Register, creates tables on
// CreateTables and then executes every read and write through
// parameterized statements. With the identity map enabled each stored row
// has at most one live instance; re-fetching a row refreshes that instance
// in place. The result cache memoizes query results by a hash of the
// statement and its arguments.
//
// A Store is not safe for concurrent use. Writes run inside a Session;
// Store.Insert, Store.Update and Store.Delete open a short session of their
// own unless one is already active.
package orm
