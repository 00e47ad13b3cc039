package sandbox

// prelude is evaluated into every fresh goja.Runtime before a handler body
// runs. goja supplies JSON, Math, Array, Object, Map, Set, Date, RegExp,
// Promise, and friends natively; the handful of browser/fetch-adjacent
// globals it doesn't (URL, URLSearchParams, TextEncoder, TextDecoder,
// Headers, Response, structuredClone) are shimmed here in plain JS rather
// than as Go host objects: these are sandbox-internal values, never the
// host's own net/http types. console is registered separately from Go
// (see RunHandler), not defined here.
const prelude = `
(function() {
  function Headers(init) {
    this._map = {};
    if (init) {
      if (init instanceof Headers) {
        for (var k in init._map) { this._map[k] = init._map[k]; }
      } else {
        for (var key in init) {
          this._map[key.toLowerCase()] = String(init[key]);
        }
      }
    }
  }
  Headers.prototype.get = function(name) {
    var v = this._map[String(name).toLowerCase()];
    return v === undefined ? null : v;
  };
  Headers.prototype.set = function(name, value) {
    this._map[String(name).toLowerCase()] = String(value);
  };
  Headers.prototype.has = function(name) {
    return Object.prototype.hasOwnProperty.call(this._map, String(name).toLowerCase());
  };
  this.Headers = Headers;

  function Response(body, init) {
    init = init || {};
    this._body = body === undefined || body === null ? '' : String(body);
    this.status = init.status === undefined ? 200 : init.status;
    this.statusText = init.statusText === undefined ? '' : init.statusText;
    this.ok = this.status >= 200 && this.status < 300;
    this.headers = init.headers instanceof Headers ? init.headers : new Headers(init.headers);
  }
  Response.prototype.text = function() {
    var self = this;
    return Promise.resolve(self._body);
  };
  Response.prototype.json = function() {
    var self = this;
    return Promise.resolve(JSON.parse(self._body));
  };
  this.Response = Response;

  function URLSearchParams(init) {
    this._pairs = [];
    if (typeof init === 'string') {
      var s = init.indexOf('?') === 0 ? init.substring(1) : init;
      if (s.length > 0) {
        var parts = s.split('&');
        for (var i = 0; i < parts.length; i++) {
          var kv = parts[i].split('=');
          this._pairs.push([decodeURIComponent(kv[0] || ''), decodeURIComponent(kv[1] || '')]);
        }
      }
    } else if (init) {
      for (var key in init) {
        this._pairs.push([key, String(init[key])]);
      }
    }
  }
  URLSearchParams.prototype.get = function(name) {
    for (var i = 0; i < this._pairs.length; i++) {
      if (this._pairs[i][0] === name) { return this._pairs[i][1]; }
    }
    return null;
  };
  URLSearchParams.prototype.set = function(name, value) {
    for (var i = 0; i < this._pairs.length; i++) {
      if (this._pairs[i][0] === name) { this._pairs[i][1] = String(value); return; }
    }
    this._pairs.push([name, String(value)]);
  };
  URLSearchParams.prototype.append = function(name, value) {
    this._pairs.push([name, String(value)]);
  };
  URLSearchParams.prototype.toString = function() {
    var out = [];
    for (var i = 0; i < this._pairs.length; i++) {
      out.push(encodeURIComponent(this._pairs[i][0]) + '=' + encodeURIComponent(this._pairs[i][1]));
    }
    return out.join('&');
  };
  this.URLSearchParams = URLSearchParams;

  var urlPattern = /^([a-zA-Z][a-zA-Z0-9+.-]*:)\/\/([^\/?#]*)([^?#]*)(\?[^#]*)?(#.*)?$/;
  function URL(input) {
    var m = urlPattern.exec(String(input));
    if (!m) { throw 'Invalid URL: ' + input; }
    this.protocol = m[1];
    this.host = m[2];
    this.hostname = m[2].split(':')[0];
    this.pathname = m[3] || '/';
    this.search = m[4] || '';
    this.hash = m[5] || '';
    this.href = String(input);
    this.searchParams = new URLSearchParams(this.search);
  }
  URL.prototype.toString = function() { return this.href; };
  this.URL = URL;

  function TextEncoder() {}
  TextEncoder.prototype.encode = function(str) {
    str = str === undefined ? '' : String(str);
    var bytes = [];
    for (var i = 0; i < str.length; i++) {
      var code = str.charCodeAt(i);
      if (code < 0x80) {
        bytes.push(code);
      } else if (code < 0x800) {
        bytes.push(0xc0 | (code >> 6), 0x80 | (code & 0x3f));
      } else {
        bytes.push(0xe0 | (code >> 12), 0x80 | ((code >> 6) & 0x3f), 0x80 | (code & 0x3f));
      }
    }
    return bytes;
  };
  this.TextEncoder = TextEncoder;

  function TextDecoder() {}
  TextDecoder.prototype.decode = function(bytes) {
    if (!bytes) { return ''; }
    var out = '';
    var i = 0;
    var len = bytes.length;
    while (i < len) {
      var b0 = bytes[i];
      if (b0 < 0x80) { out += String.fromCharCode(b0); i += 1; }
      else if ((b0 & 0xe0) === 0xc0) {
        out += String.fromCharCode(((b0 & 0x1f) << 6) | (bytes[i + 1] & 0x3f));
        i += 2;
      } else {
        out += String.fromCharCode(((b0 & 0x0f) << 12) | ((bytes[i + 1] & 0x3f) << 6) | (bytes[i + 2] & 0x3f));
        i += 3;
      }
    }
    return out;
  };
  this.TextDecoder = TextDecoder;

  this.structuredClone = function(value) {
    return JSON.parse(JSON.stringify(value));
  };
}).call(this);
`
