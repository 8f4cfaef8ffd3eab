// Package scope turns a resolved identity into SQL row filters and creation
// stamps for scoped tables.
//
// Every scoped table registers which scope columns it carries in the column
// manifest. The filter builder dispatches on the identity's role class and
// emits only predicates whose columns the table actually has. An unknown
// role class, or a class whose required scope id is missing, produces a
// filter that matches no rows. Super admins get an empty filter, meaning no
// scope restriction at all.
//
// The same manifest drives creation stamping, so the columns a row is
// filtered by are exactly the columns stamped at insert time.
package scope
