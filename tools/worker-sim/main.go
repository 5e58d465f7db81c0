// worker-sim stands in for the transcription worker, the inference worker and
// the storage service during local development. It accepts dispatches with
// 202 and fires the callback after a short delay, like the real workers do.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"sync"
	"time"
)

var (
	delay = 500 * time.Millisecond

	mu       sync.Mutex
	checkins []json.RawMessage
)

func main() {
	addr := ":6001"
	if v := os.Getenv("ADDR"); v != "" {
		addr = v
	}
	if v := os.Getenv("CALLBACK_DELAY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			delay = d
		}
	}

	http.HandleFunc("/transcribe", transcribeHandler)
	http.HandleFunc("/answer/callback", answerHandler)
	http.HandleFunc("/api/checkins", checkinsHandler)
	http.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})

	log.Printf("worker-sim listening on %s (callback delay %s)", addr, delay)
	log.Fatal(http.ListenAndServe(addr, nil))
}

func transcribeHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	callback := r.FormValue("callback_url")
	if callback == "" {
		http.Error(w, "callback_url required", http.StatusBadRequest)
		return
	}
	auth := r.Header.Get("Authorization")

	file, hdr, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "file required", http.StatusBadRequest)
		return
	}
	n, _ := io.Copy(io.Discard, file)
	file.Close()

	log.Printf("transcribe accepted: %s (%d bytes), callback %s", hdr.Filename, n, callback)
	w.WriteHeader(http.StatusAccepted)

	go func() {
		time.Sleep(delay)
		body, _ := json.Marshal(map[string]string{
			"transcription": "I went for a walk this morning and I am feeling quite good today.",
		})
		deliver(callback, auth, body)
	}()
}

func answerHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Prompt   string `json:"prompt"`
		Callback string `json:"callback"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Callback == "" {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	auth := r.Header.Get("Authorization")

	log.Printf("inference accepted: %d prompt bytes, callback %s", len(req.Prompt), req.Callback)
	w.WriteHeader(http.StatusAccepted)

	go func() {
		time.Sleep(delay)
		inner, _ := json.Marshal(map[string]any{
			"summary":    "User went for a walk and reports feeling good.",
			"priority":   1,
			"mood":       2,
			"status":     "okay",
			"transcript": "I went for a walk this morning and I am feeling quite good today.",
		})
		body, _ := json.Marshal(map[string]string{"content": string(inner)})
		deliver(req.Callback, auth, body)
	}()
}

func checkinsHandler(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	defer r.Body.Close()

	mu.Lock()
	checkins = append(checkins, body)
	n := len(checkins)
	mu.Unlock()

	log.Printf("check-in stored #%d: %s", n, string(body))
	w.WriteHeader(http.StatusCreated)
	fmt.Fprintf(w, `{"stored":%d}`, n)
}

func deliver(callback, auth string, body []byte) {
	req, err := http.NewRequest(http.MethodPost, callback, bytes.NewReader(body))
	if err != nil {
		log.Printf("callback build error: %v", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Printf("callback delivery error: %v", err)
		return
	}
	defer resp.Body.Close()
	log.Printf("callback %s answered %d", callback, resp.StatusCode)
}
