// Package entities defines the gorm models of the canonical inspection schema.
//
// JSON columns use gorm.io/datatypes and are always written with a value
// ("[]", "{}" or "null") so that scanning never sees SQL NULL.
package entities
