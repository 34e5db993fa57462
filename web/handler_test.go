package web_test

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/andrewwphillips/gqlkit/web"
	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

func TestHandler(t *testing.T) {
	handlerData := map[string]struct {
		method      string
		contentType string
		accept      string
		target      string
		body        string
		status      int
		expected    string // part of the expected response body
	}{
		"post":      {method: "POST", body: `{"query":"{hello}"}`, status: 200, expected: `{"data":{"hello":"hello world"}}`},
		"variables": {method: "POST", body: `{"query":"query($n:String!){hello(name:$n)}","variables":{"n":"Bob"}}`, status: 200, expected: `"hello Bob"`},
		"get":       {method: "GET", target: "/?query=" + url.QueryEscape(`{hello(name:"x")}`), status: 200, expected: `"hello x"`},
		"get_vars": {method: "GET", target: "/?query=" + url.QueryEscape(`query($n:String!){hello(name:$n)}`) +
			"&variables=" + url.QueryEscape(`{"n":"Al"}`), status: 200, expected: `"hello Al"`},
		"graphql":     {method: "POST", contentType: "application/graphql", body: `{hello}`, status: 200, expected: `"hello world"`},
		"bad_json":    {method: "POST", body: `{`, status: 400, expected: `error decoding request`},
		"empty":       {method: "POST", body: `{}`, status: 400, expected: `no query document`},
		"put":         {method: "PUT", body: `{"query":"{hello}"}`, status: 405, expected: `not allowed`},
		"validation":  {method: "POST", body: `{"query":"{nope}"}`, status: 200, expected: `"classification":"ValidationError"`},
		"syntax":      {method: "POST", body: `{"query":"{"}`, status: 200, expected: `"classification":"InvalidSyntax"`},
		"no_sse":      {method: "POST", body: `{"query":"subscription {count(to:1)}"}`, status: 400, expected: `text/event-stream`},
		"sse_query":   {method: "POST", accept: "text/event-stream", body: `{"query":"{hello}"}`, status: 200, expected: "event: next\ndata: {\"data\":{\"hello\":\"hello world\"}}\n\nevent: complete\n"},
		"response_ct": {method: "POST", accept: "application/graphql-response+json", body: `{"query":"{hello}"}`, status: 200, expected: `"hello world"`},
	}

	h := web.NewHandler(newService(0))
	for name, testData := range handlerData {
		target := testData.target
		if target == "" {
			target = "/"
		}
		request := httptest.NewRequest(testData.method, target, strings.NewReader(testData.body))
		if testData.contentType != "" {
			request.Header.Set("Content-Type", testData.contentType)
		} else if testData.method == "POST" {
			request.Header.Set("Content-Type", "application/json")
		}
		if testData.accept != "" {
			request.Header.Set("Accept", testData.accept)
		}
		writer := httptest.NewRecorder()
		h.ServeHTTP(writer, request)

		Assertf(t, writer.Code == testData.status, "%12s: expected status %d, got %d", name, testData.status, writer.Code)
		Assertf(t, strings.Contains(writer.Body.String(), testData.expected), "%12s: expected body containing %q, got %q",
			name, testData.expected, writer.Body.String())
		if testData.status >= 400 {
			Assertf(t, !strings.Contains(writer.Body.String(), `"data"`), "%12s: expected no data entry for a request error, got %q",
				name, writer.Body.String())
		}
		if testData.accept != "" {
			Assertf(t, writer.Header().Get("Content-Type") == testData.accept, "%12s: expected content type %q, got %q",
				name, testData.accept, writer.Header().Get("Content-Type"))
		}
	}
}

func TestSSE(t *testing.T) {
	h := web.NewHandler(newService(0))
	request := httptest.NewRequest("POST", "/", strings.NewReader(`{"query":"subscription {count(to:3)}"}`))
	request.Header.Set("Accept", "text/event-stream")
	writer := httptest.NewRecorder()
	h.ServeHTTP(writer, request)

	assert.Equal(t, http.StatusOK, writer.Code)
	assert.Equal(t, "event: next\ndata: {\"data\":{\"count\":1}}\n\n"+
		"event: next\ndata: {\"data\":{\"count\":2}}\n\n"+
		"event: next\ndata: {\"data\":{\"count\":3}}\n\n"+
		"event: complete\ndata: \n\n", writer.Body.String())
}

func TestUpload(t *testing.T) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	require.NoError(t, w.WriteField("operations", `{"query":"mutation($f:Upload!){upload(file:$f)}","variables":{"f":null}}`))
	require.NoError(t, w.WriteField("map", `{"0":["variables.f"]}`))
	part, err := w.CreateFormFile("0", "a.txt")
	require.NoError(t, err)
	_, err = part.Write([]byte("abc"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	request := httptest.NewRequest("POST", "/", &body)
	request.Header.Set("Content-Type", w.FormDataContentType())
	writer := httptest.NewRecorder()
	web.NewHandler(newService(0)).ServeHTTP(writer, request)

	assert.Equal(t, http.StatusOK, writer.Code)
	assert.JSONEq(t, `{"data":{"upload":"a.txt:abc"}}`, writer.Body.String())
}

func TestUploadErrors(t *testing.T) {
	uploadData := map[string]struct {
		operations, mapping string
		expected            string
	}{
		"no_operations": {"", `{}`, "no operations"},
		"batched":       {`[{"query":"{hello}"}]`, `{}`, "batched"},
		"bad_path":      {`{"query":"{hello}"}`, `{"0":["query"]}`, "is not a variable"},
		"no_file":       {`{"query":"{hello}"}`, `{"1":["variables.f"]}`, "getting file"},
	}
	for name, testData := range uploadData {
		var body bytes.Buffer
		w := multipart.NewWriter(&body)
		if testData.operations != "" {
			_ = w.WriteField("operations", testData.operations)
		}
		_ = w.WriteField("map", testData.mapping)
		part, _ := w.CreateFormFile("0", "a.txt")
		_, _ = part.Write([]byte("abc"))
		_ = w.Close()

		request := httptest.NewRequest("POST", "/", &body)
		request.Header.Set("Content-Type", w.FormDataContentType())
		writer := httptest.NewRecorder()
		web.NewHandler(newService(0)).ServeHTTP(writer, request)

		Assertf(t, writer.Code == http.StatusBadRequest, "%14s: expected status 400, got %d", name, writer.Code)
		Assertf(t, strings.Contains(writer.Body.String(), testData.expected), "%14s: expected %q in %q", name, testData.expected, writer.Body.String())
	}
}

func TestInterceptors(t *testing.T) {
	var order []string
	var gotLocale language.Tag
	record := func(name string) web.Interceptor {
		return web.InterceptorFunc(func(ctx context.Context, request *web.WebRequest, next web.Chain) (*web.WebResponse, error) {
			order = append(order, name)
			gotLocale = request.Locale
			r, err := next(ctx, request)
			if err == nil {
				r.Header.Add("X-Interceptor", name)
			}
			return r, err
		})
	}
	rename := web.InterceptorFunc(func(ctx context.Context, request *web.WebRequest, next web.Chain) (*web.WebResponse, error) {
		if c, err := request.Cookie("name"); err == nil {
			request.Document = `{hello(name:"` + c.Value + `")}`
		}
		return next(ctx, request)
	})
	h := web.NewHandler(newService(0), web.Interceptors(record("a"), record("b")), web.Interceptors(rename))

	request := httptest.NewRequest("POST", "/", strings.NewReader(`{"query":"{hello}"}`))
	request.Header.Set("Accept-Language", "fr-CH, fr;q=0.9, en;q=0.8")
	request.AddCookie(&http.Cookie{Name: "name", Value: "Zoe"})
	writer := httptest.NewRecorder()
	h.ServeHTTP(writer, request)

	assert.Equal(t, []string{"a", "b"}, order)
	assert.Equal(t, []string{"b", "a"}, writer.Header().Values("X-Interceptor"))
	assert.Equal(t, language.MustParse("fr-CH"), gotLocale)
	assert.JSONEq(t, `{"data":{"hello":"hello Zoe"}}`, writer.Body.String())
}

func TestJWT(t *testing.T) {
	good, err := web.NewToken(secret, jwt.MapClaims{"sub": "andrew"})
	require.NoError(t, err)
	other, err := web.NewToken([]byte("other secret"), jwt.MapClaims{"sub": "eve"})
	require.NoError(t, err)

	jwtData := map[string]struct {
		authorization string
		expected      string
	}{
		"none":    {"", `{"data":{"whoami":null}}`},
		"valid":   {"Bearer " + good, `{"data":{"whoami":"andrew"}}`},
		"invalid": {"Bearer " + other, `{"errors":[{"message":"invalid token: signature is invalid","extensions":{"classification":"UNAUTHORIZED"}}]}`},
		"basic":   {"Basic YTpi", `{"errors":[{"message":"authorization is not a bearer token","extensions":{"classification":"UNAUTHORIZED"}}]}`},
		"mangled": {"Bearer xyz", ``},
	}
	h := web.NewHandler(newService(0), web.Interceptors(web.JWTInterceptor(secret)))
	for name, testData := range jwtData {
		request := httptest.NewRequest("POST", "/", strings.NewReader(`{"query":"{whoami}"}`))
		if testData.authorization != "" {
			request.Header.Set("Authorization", testData.authorization)
		}
		writer := httptest.NewRecorder()
		h.ServeHTTP(writer, request)

		Assertf(t, writer.Code == http.StatusOK, "%8s: expected status 200, got %d", name, writer.Code)
		if testData.expected == "" {
			Assertf(t, strings.Contains(writer.Body.String(), `"UNAUTHORIZED"`), "%8s: expected UNAUTHORIZED, got %s", name, writer.Body.String())
			continue
		}
		Assertf(t, writer.Body.String() == testData.expected, "%8s: expected %s, got %s", name, testData.expected, writer.Body.String())
	}
}
