package sandbox

import "github.com/dop251/goja"

// allowedGlobals is the exact set of top-level bindings a handler may see:
// data/computation builtins, the fetch-adjacent HTTP/URL shims from
// prelude.go, and console. fetch itself is added conditionally by
// restrictGlobals for networked tools.
//
// encodeURIComponent/decodeURIComponent are kept even though they aren't
// individually listed above: URLSearchParams's own parsing and
// serialization calls them internally, and they have no side effect
// beyond string transformation.
var allowedGlobals = map[string]bool{
	"JSON": true, "Math": true, "String": true, "Number": true, "Boolean": true,
	"Array": true, "Object": true, "Map": true, "Set": true, "Date": true, "RegExp": true,
	"parseInt": true, "parseFloat": true, "isNaN": true, "isFinite": true,
	"structuredClone": true, "Promise": true,

	"URL": true, "URLSearchParams": true, "TextEncoder": true, "TextDecoder": true,
	"Headers": true, "Response": true,

	"console": true,

	"encodeURIComponent": true, "decodeURIComponent": true,
}

// restrictGlobals prunes every own global binding — enumerable or not —
// that goja's runtime supplies by default down to allowedGlobals (plus
// fetch, when networked is true). Non-configurable bindings (undefined,
// NaN, Infinity) cannot be deleted and stay in place.
// Without this, goja's standard-library globals — eval, Function, Proxy,
// Reflect, Symbol, WeakMap/WeakSet, ArrayBuffer and the typed array
// family, encodeURI/decodeURI/escape/unescape, and the Error constructor
// family — would all still be reachable from handler source. Call this
// after every capability (fetch, console) has been registered and before
// compiling the handler program.
func restrictGlobals(rt *goja.Runtime, networked bool) {
	global := rt.GlobalObject()
	for _, name := range global.GetOwnPropertyNames() {
		if allowedGlobals[name] {
			continue
		}
		if networked && name == "fetch" {
			continue
		}
		global.Delete(name)
	}
}
