package server

import (
	"net/http"
	"strconv"
	"strings"
)

const (
	AllowOriginHeader      = "Access-Control-Allow-Origin"
	AllowHeadersHeader     = "Access-Control-Allow-Headers"
	AllowMethodsHeader     = "Access-Control-Allow-Methods"
	RequestMethodHeader    = "Access-Control-Request-Method"
	RequestHeadersHeader   = "Access-Control-Request-Headers"
	AllowCredentialsHeader = "Access-Control-Allow-Credentials"
	ExposeHeadersHeader    = "Access-Control-Expose-Headers"
	MaxAgeHeader           = "Access-Control-Max-Age"
	Separator              = ", "
)

// Cors represents the cross-origin policy applied to every response
type Cors struct {
	AllowCredentials *bool    `yaml:"allowCredentials,omitempty"`
	AllowHeaders     []string `yaml:"allowHeaders,omitempty"`
	AllowMethods     []string `yaml:"allowMethods,omitempty"`
	AllowOrigins     []string `yaml:"allowOrigins,omitempty"`
	ExposeHeaders    []string `yaml:"exposeHeaders,omitempty"`
	MaxAge           *int64   `yaml:"maxAge,omitempty"`
}

// OriginMap indexes the allowed origins
func (c *Cors) OriginMap() map[string]bool {
	var result = make(map[string]bool)
	for _, origin := range c.AllowOrigins {
		result[origin] = true
	}
	return result
}

// corsHandler is a handler that sets CORS headers and answers preflight requests
type corsHandler struct {
	*Cors
}

func (h *corsHandler) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.Cors.setHeaders(w, r)
		if isPreflight(r) {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func isPreflight(r *http.Request) bool {
	return r.Method == http.MethodOptions && r.Header.Get(RequestMethodHeader) != ""
}

func (c *Cors) setHeaders(writer http.ResponseWriter, request *http.Request) {
	if c == nil {
		return
	}
	origin := request.Header.Get("Origin")
	allowedOrigins := c.OriginMap()
	credentials := c.AllowCredentials != nil && *c.AllowCredentials
	switch {
	case allowedOrigins["*"] && (origin == "" || !credentials):
		writer.Header().Set(AllowOriginHeader, "*")
	case allowedOrigins["*"], origin != "" && allowedOrigins[origin]:
		writer.Header().Set(AllowOriginHeader, origin)
		writer.Header().Add("Vary", "Origin")
	}
	if len(c.AllowMethods) > 0 {
		methods := strings.Join(c.AllowMethods, Separator)
		if methods == "*" {
			methods = request.Method
			if requested := request.Header.Get(RequestMethodHeader); requested != "" {
				methods = requested
			}
		}
		writer.Header().Set(AllowMethodsHeader, methods)
	}
	if len(c.AllowHeaders) > 0 {
		allowedHeaders := strings.Join(c.AllowHeaders, Separator)
		if allowedHeaders == "*" {
			allowedHeaders = "Content-Type,Authorization,Mcp-Session-Id,MCP-Protocol-Version"
			if requested := request.Header.Get(RequestHeadersHeader); requested != "" {
				allowedHeaders = requested
			}
		}
		writer.Header().Set(AllowHeadersHeader, allowedHeaders)
	}
	if c.AllowCredentials != nil {
		writer.Header().Set(AllowCredentialsHeader, strconv.FormatBool(*c.AllowCredentials))
	}
	if c.MaxAge != nil {
		writer.Header().Set(MaxAgeHeader, strconv.Itoa(int(*c.MaxAge)))
	}
	if len(c.ExposeHeaders) > 0 {
		exposedHeaders := strings.Join(c.ExposeHeaders, Separator)
		if exposedHeaders == "*" {
			exposedHeaders = "Content-Type," + TraceIDHeader
		}
		writer.Header().Set(ExposeHeadersHeader, exposedHeaders)
	}
}

// DefaultCors allows any origin without credentials and echoes the requested methods and headers
func DefaultCors() *Cors {
	ret := &Cors{
		AllowHeaders:  []string{"*"},
		AllowMethods:  []string{"*"},
		AllowOrigins:  []string{"*"},
		ExposeHeaders: []string{"*"},
	}
	return ret
}
