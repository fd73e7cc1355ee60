// Package domain models DANE SIPSA wholesale price observations and the
// city-grouped summary rendered by the price map.
//
// # Data Source
//
// Observations come from the SIPSA (Sistema de Información de Precios y
// Abastecimiento del Sector Agropecuario) "promedios por ciudad" service
// published by DANE. An external client fetches the SOAP response and
// stores it as a flat JSON array snapshot; this package never talks to
// DANE directly.
//
// # SIPSA Data Conventions
//
// Field names:
//
//	Producers disagree on casing. The SOAP client emits PascalCase
//	("FechaCaptura", "NombreCiudad", "CodigoProducto") while older
//	exports use camelCase or short names ("fechaCaptura", "ciudad",
//	"codProducto"). Each logical field has an ordered alias list; the
//	first present key wins. See [FieldAliases].
//
// City names:
//
//	"MEDELLÍN, ANTIOQUIA"  →  "MEDELLÍN"
//	Some producers double-escape accented letters, leaving literal
//	\uXXXX sequences in the string. Department qualifiers follow a comma.
//	Canonical form is decoded, NFC-composed, cut at the first comma,
//	trimmed and upper-cased. See [NormalizeCity].
//
// Capture timestamps:
//
//	"2025-06-03 00:00:00-05:00", "2025-06-03 00:00:00.000", "2025-06-03"
//	Colombia time (UTC-5, no DST). The "-05:00" suffix and fractional
//	seconds are stripped and the remainder is read in the feed's fixed
//	offset. Unparseable values are treated as the run's "now". See
//	[TimeParser.Parse].
//
// # Selection
//
// For every (canonical city, product code) pair only the latest
// observation inside the trailing retention window survives. Exact
// timestamp ties keep the first record in input order. See [Select].
package domain
