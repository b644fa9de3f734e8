// Package schema defines table column layouts and validates rows against them.
//
// A schema has exactly one fixed-dimension float32 vector column and any
// number of scalar columns. The vector dimension is fixed for the lifetime of
// a table; every fragment of a table is written with the table's schema.
//
//	s, err := schema.Define(
//	    schema.Vector("vector", 1024, schema.WithNullElements()),
//	    schema.String("image_location"),
//	    schema.String("image_description"),
//	)
package schema
