// Package signatures ships the built-in detection set. Every signature in
// this package registers itself into detect.DefaultCatalog at init time,
// so importing the package for side effects arms the full set:
//
//	import _ "shrike/signatures"
//
// Declarative YAML rules loaded through detect.LoadRuleDir complement
// these at runtime.
package signatures
