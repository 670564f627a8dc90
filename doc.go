package vds

// Package vds implements virtual datasheets: schema-driven records whose
// values inherit from a parent datasheet, can be overridden locally, and may
// hold nested object instances or references to other datasheets.
//
// - Schema (classes, enums, members) lives in schema/ and is loaded once from a binding.
// - Datasheet owns a root Object, uuid-keyed instance objects and override objects.
// - DataValue is a tagged variant selected by its member type.
// - Inherited reads walk parent objects; the first write copies the value locally.
// - Instances are collected by reachability from the root (DeleteOrphanedInstanceObjects).
// - Older documents are upgraded by migrate/ before loading.
//
// Design policy:
// - Keep the object model in the root package; schema, migration and CLI live beside it.
// - Parent objects and instances are looked up by uuid on demand, never cached.
// - Non-fatal problems become Issues on the datasheet and are logged, never panicked.
//
// Typical usage:
//
//	b, err := schema.LoadFile("binding.yaml")
//	p := vds.NewParser(b)
//	lib := vds.NewLibrary(p, "data")
//	ds, err := lib.LoadResource("items/sword.item")
//	dv, err := ds.Root().Edit("damage")
//	err = dv.SetInt(12)
//	err = ds.SaveFile(lib.Path(ds.ID()))
//
