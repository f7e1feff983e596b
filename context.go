package bear

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/devmarvs/bear/apperr"
)

// Context holds request-specific data. One Context is created per request and
// passed by pointer through every middleware and the handler.
type Context struct {
	ResponseWriter http.ResponseWriter
	Request        *http.Request

	app    *App
	values map[string]any
}

// NewContext constructs a Context.
func NewContext(w http.ResponseWriter, r *http.Request, app *App) *Context {
	return &Context{
		ResponseWriter: w,
		Request:        r,
		app:            app,
		values:         make(map[string]any),
	}
}

// Param returns a route param.
func (c *Context) Param(name string) string {
	return c.Request.PathValue(name)
}

// Query returns a query param.
func (c *Context) Query(name string) string {
	return c.Request.URL.Query().Get(name)
}

// Cookie returns the value of a request cookie, or "" when absent.
func (c *Context) Cookie(name string) string {
	cookie, err := c.Request.Cookie(name)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// Set stores a value in the context.
func (c *Context) Set(key string, value any) {
	c.values[key] = value
}

// Get retrieves a stored value.
func (c *Context) Get(key string) (any, bool) {
	value, ok := c.values[key]
	return value, ok
}

// Logger returns the app logger bound to the request id.
func (c *Context) Logger() Logger {
	return Logger{logger: c.app.logger, requestID: RequestIDFromHeader(c.Request)}
}

// JSON responds with JSON.
func (c *Context) JSON(status int, payload any) error {
	c.ResponseWriter.Header().Set("Content-Type", "application/json; charset=utf-8")
	c.ResponseWriter.WriteHeader(status)
	return json.NewEncoder(c.ResponseWriter).Encode(payload)
}

// Text responds with plain text.
func (c *Context) Text(status int, message string) error {
	c.ResponseWriter.Header().Set("Content-Type", "text/plain; charset=utf-8")
	c.ResponseWriter.WriteHeader(status)
	_, err := io.WriteString(c.ResponseWriter, message)
	return err
}

// NoContent responds with a status and no body.
func (c *Context) NoContent(status int) error {
	c.ResponseWriter.WriteHeader(status)
	return nil
}

// Redirect responds with a redirect to location.
func (c *Context) Redirect(status int, location string) error {
	http.Redirect(c.ResponseWriter, c.Request, location, status)
	return nil
}

// BindJSON binds the request body to a struct.
func (c *Context) BindJSON(dst any) error {
	decoder := json.NewDecoder(c.Request.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return apperr.PayloadTooLarge("request body too large", err)
		}
		return apperr.BadRequest("invalid JSON", err)
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return apperr.BadRequest("unexpected JSON payload", err)
	}
	return nil
}

// RequestID returns the request id header.
func (c *Context) RequestID() string {
	return RequestIDFromHeader(c.Request)
}
