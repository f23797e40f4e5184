// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

/*
Package typeinfo contains code relating to record types and their processing
in sqlorm. As much as possible, reflection code is limited to this package. It
contains the logic for validating records, extracting column information from
their `db` tags and reading and writing their fields by column name.
*/
package typeinfo
