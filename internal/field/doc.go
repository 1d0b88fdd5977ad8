// Package field defines the value model for editable record fields and the
// dirty-comparison rules the autosave engine is built on.
//
// The engine treats records as opaque maps of field name to Value. Values are
// deliberately constrained to strings, integers, booleans, and lists:
//   - No floats. Float equality is representation-dependent and would make
//     dirty detection non-deterministic across hosts.
//   - No nulls. An absent field and an empty field are the same thing for
//     autosave purposes (see Dirty).
//
// Comparison is canonical, not structural:
//   - Strings are NFC-normalized before comparison, so composed and
//     decomposed representations of the same text never count as an edit.
//   - Lists compare as sets. Reordering a tag list is not a material edit;
//     each element is serialized to canonical JSON, the serializations are
//     sorted, and the sorted forms are compared.
//   - Empty-vs-empty is never dirty: a brand-new record whose fields are all
//     blank must not schedule a save.
//
// MarshalCanonical produces RFC 8785 canonical JSON (UTF-16 key ordering,
// NFC strings, no HTML escaping). SnapshotETag hashes that form with domain
// separation, giving stores a stable content revision tag.
package field
