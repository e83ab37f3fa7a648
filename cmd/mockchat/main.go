// Package main provides a fake chat-completion server for exercising chatctl
// locally. It can inject failures and latency, which is handy for watching
// retries fire and the circuit breaker trip and recover.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"time"
)

func main() {
	addr := flag.String("addr", ":3001", "address to listen on")
	failRatio := flag.Float64("fail", 0, "ratio of requests to fail with 500 (0..1)")
	latency := flag.Duration("latency", 0, "artificial latency per request")
	reply := flag.String("reply", "", "canned reply; default echoes the last user message")
	flag.Parse()

	http.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		if *latency > 0 {
			time.Sleep(*latency)
		}

		w.Header().Set("Content-Type", "application/json")

		if *failRatio > 0 && rand.Float64() < *failRatio {
			w.WriteHeader(http.StatusInternalServerError)
			json.NewEncoder(w).Encode(map[string]any{
				"error": map[string]any{"message": "injected failure"},
			})
			return
		}

		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]any{
				"error": map[string]any{"message": "malformed request body"},
			})
			return
		}

		content := *reply
		if content == "" {
			content = "echo: "
			for i := len(req.Messages) - 1; i >= 0; i-- {
				if req.Messages[i].Role == "user" {
					content += req.Messages[i].Content
					break
				}
			}
		}

		json.NewEncoder(w).Encode(map[string]any{
			"model": req.Model,
			"choices": []map[string]any{
				{
					"message":       map[string]string{"role": "assistant", "content": content},
					"finish_reason": "stop",
				},
			},
		})
	})

	fmt.Printf("mockchat listening on %s (fail=%.2f latency=%s)\n", *addr, *failRatio, *latency)
	log.Fatal(http.ListenAndServe(*addr, nil))
}
