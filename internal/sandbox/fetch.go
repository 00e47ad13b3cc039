package sandbox

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/dop251/goja"

	"github.com/vivekhaldar/mcpboot/internal/whitelist"
)

// registerFetch installs a fetch(url, options) global backed by gated,
// running the gated HTTP round trip synchronously in the calling goroutine
// and handing the handler a resolved (or rejected) native Promise — there is
// no real concurrency inside one sandboxed invocation (see the concurrency
// model), so a synchronous call underneath an async-looking API is safe.
func registerFetch(ctx context.Context, rt *goja.Runtime, gated whitelist.Fetch) {
	rt.Set("fetch", func(call goja.FunctionCall) goja.Value {
		promise, resolve, reject := rt.NewPromise()

		url := call.Argument(0).String()
		method := http.MethodGet
		var body io.Reader
		headers := map[string]string{}

		if len(call.Arguments) > 1 && !goja.IsUndefined(call.Argument(1)) {
			opts := call.Argument(1).ToObject(rt)
			if m := opts.Get("method"); m != nil && !goja.IsUndefined(m) {
				method = strings.ToUpper(m.String())
			}
			if b := opts.Get("body"); b != nil && !goja.IsUndefined(b) {
				body = strings.NewReader(b.String())
			}
			if h := opts.Get("headers"); h != nil && !goja.IsUndefined(h) {
				hObj := h.ToObject(rt)
				for _, key := range hObj.Keys() {
					headers[key] = hObj.Get(key).String()
				}
			}
		}

		req, err := http.NewRequestWithContext(ctx, method, url, body)
		if err != nil {
			reject(rt.ToValue(err.Error()))
			return rt.ToValue(promise)
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := gated(ctx, req)
		if err != nil {
			reject(rt.ToValue(err.Error()))
			return rt.ToValue(promise)
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			reject(rt.ToValue(err.Error()))
			return rt.ToValue(promise)
		}

		jsHeaders := rt.NewObject()
		for k := range resp.Header {
			jsHeaders.Set(strings.ToLower(k), resp.Header.Get(k))
		}

		init := rt.NewObject()
		init.Set("status", resp.StatusCode)
		init.Set("statusText", resp.Status)
		init.Set("headers", jsHeaders)

		respObj, err := rt.New(rt.Get("Response"), rt.ToValue(string(respBody)), init)
		if err != nil {
			reject(rt.ToValue(err.Error()))
			return rt.ToValue(promise)
		}
		resolve(respObj)
		return rt.ToValue(promise)
	})
}
