package web

// sse.go sends responses as server-sent events: a "next" event for each response then "complete"

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/andrewwphillips/gqlkit/graphql"
	"github.com/jensneuse/abstractlogger"
)

func (h *Handler) serveSSE(w http.ResponseWriter, r *http.Request, response graphql.Response) {
	flusher, _ := w.(http.Flusher)
	w.Header().Set("Content-Type", contentTypeSSE)
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	send := func(event string, data []byte) bool {
		if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data); err != nil {
			h.log.Error("error writing event", abstractlogger.Error(err))
			return false
		}
		if flusher != nil {
			flusher.Flush()
		}
		return true
	}
	next := func(r graphql.Response) bool {
		buf, err := json.Marshal(r)
		if err != nil {
			buf, _ = json.Marshal(graphql.Response{Errors: []graphql.ResponseError{{
				Message: "error encoding JSON response: " + err.Error(), Classification: graphql.InternalError,
			}}})
		}
		return send("next", buf)
	}

	stream, ok := response.Data.(graphql.Stream)
	if !ok {
		if next(response) {
			send("complete", nil)
		}
		return
	}
	for {
		select {
		case event, ok := <-stream:
			if !ok {
				send("complete", nil)
				return
			}
			if !next(event) {
				return
			}
		case <-r.Context().Done():
			return
		}
	}
}
