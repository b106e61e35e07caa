package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"
)

// Smoke test against a running schoolcore-api: obtains a token, performs an
// allowed read and verifies an unauthenticated call is rejected.
func main() {
	base := os.Getenv("SCHOOLCORE_API_ADDR")
	if base == "" {
		base = "http://localhost:8080"
	}
	email := os.Getenv("SCHOOLCORE_SMOKE_EMAIL")
	password := os.Getenv("SCHOOLCORE_SMOKE_PASSWORD")
	if email == "" || password == "" {
		log.Fatal("SCHOOLCORE_SMOKE_EMAIL and SCHOOLCORE_SMOKE_PASSWORD are required")
	}

	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(base + "/healthz")
	if err != nil {
		log.Fatalf("healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		log.Fatalf("healthz status: %d", resp.StatusCode)
	}

	payload, _ := json.Marshal(map[string]string{"email": email, "password": password})
	resp, err = client.Post(base+"/v1/auth/token", "application/json", bytes.NewReader(payload))
	if err != nil {
		log.Fatalf("token request: %v", err)
	}
	var token struct {
		Token string `json:"token"`
	}
	err = json.NewDecoder(resp.Body).Decode(&token)
	resp.Body.Close()
	if err != nil || resp.StatusCode != http.StatusOK || token.Token == "" {
		log.Fatalf("token response: status=%d err=%v", resp.StatusCode, err)
	}

	req, _ := http.NewRequest(http.MethodGet, base+"/v1/students", nil)
	req.Header.Set("Authorization", "Bearer "+token.Token)
	resp, err = client.Do(req)
	if err != nil {
		log.Fatalf("list students: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusForbidden {
		log.Fatalf("list students status: %d", resp.StatusCode)
	}
	authorized := resp.StatusCode == http.StatusOK

	resp, err = client.Get(base + "/v1/students")
	if err != nil {
		log.Fatalf("anonymous list: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		log.Fatalf("anonymous list must be 401, got %d", resp.StatusCode)
	}

	fmt.Printf("✅ authz smoke test passed: authorized=%v\n", authorized)
}
