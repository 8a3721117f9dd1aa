package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"
)

// End-to-end smoke against a running recircuit-api: log in as the demo
// operator, walk one item through repair, buy it, and confirm it is gone.

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type item struct {
	ID       string `json:"id"`
	Status   string `json:"status"`
	Cost     int64  `json:"cost"`
	ImageURL string `json:"image_url"`
}

type listingPage struct {
	Items []struct {
		ID   string `json:"id"`
		Cost int64  `json:"cost"`
	} `json:"items"`
}

func main() {
	base := os.Getenv("RECIRCUIT_API_URL")
	if base == "" {
		base = "http://localhost:8080"
	}
	email := os.Getenv("RECIRCUIT_SMOKE_EMAIL")
	if email == "" {
		email = "operator@example.org"
	}
	password := os.Getenv("RECIRCUIT_SMOKE_PASSWORD")
	if password == "" {
		password = "secret"
	}

	client := &http.Client{Timeout: 10 * time.Second}

	var session loginResponse
	statusCode := call(client, "POST", base+"/v1/auth/login", "", map[string]string{
		"email":    email,
		"password": password,
	}, &session)
	if statusCode != http.StatusOK {
		log.Fatalf("login: status %d", statusCode)
	}

	var created item
	statusCode = call(client, "POST", base+"/v1/items", session.Token, map[string]string{
		"description": fmt.Sprintf("smoke laptop %d", time.Now().UnixNano()),
		"operation":   "Repair",
		"location":    "smoke-depot",
	}, &created)
	if statusCode != http.StatusCreated {
		log.Fatalf("submit item: status %d", statusCode)
	}
	if created.Status != "Pending" {
		log.Fatalf("fresh item status = %q, want Pending", created.Status)
	}

	statusURL := base + "/v1/items/" + created.ID + "/status"
	var updated item
	statusCode = call(client, "POST", statusURL, session.Token, map[string]string{
		"target_status": "Processing",
	}, &updated)
	if statusCode != http.StatusOK {
		log.Fatalf("move to Processing: status %d", statusCode)
	}

	// Repaired without a photo must be refused.
	statusCode = call(client, "POST", statusURL, session.Token, map[string]string{
		"target_status": "Repaired",
	}, nil)
	if statusCode != http.StatusUnprocessableEntity {
		log.Fatalf("repair without image: status %d, want 422", statusCode)
	}

	statusCode = call(client, "POST", statusURL, session.Token, map[string]string{
		"target_status": "Repaired",
		"image_url":     "https://img.recircuit.org/smoke.jpg",
	}, &updated)
	if statusCode != http.StatusOK {
		log.Fatalf("move to Repaired: status %d", statusCode)
	}
	if updated.Cost == 0 || updated.ImageURL == "" {
		log.Fatalf("repaired item missing tariff or image: cost=%d image=%q", updated.Cost, updated.ImageURL)
	}

	var page listingPage
	statusCode = call(client, "GET", base+"/v1/market/items", session.Token, nil, &page)
	if statusCode != http.StatusOK {
		log.Fatalf("list market: status %d", statusCode)
	}
	found := false
	for _, l := range page.Items {
		if l.ID == created.ID {
			found = true
		}
	}
	if !found {
		log.Fatalf("repaired item %s not listed for sale", created.ID)
	}

	purchaseURL := base + "/v1/market/items/" + created.ID + "/purchase"
	statusCode = call(client, "POST", purchaseURL, session.Token, nil, nil)
	if statusCode != http.StatusOK {
		log.Fatalf("purchase: status %d", statusCode)
	}

	statusCode = call(client, "GET", base+"/v1/items/"+created.ID, session.Token, nil, nil)
	if statusCode != http.StatusNotFound {
		log.Fatalf("item after purchase: status %d, want 404", statusCode)
	}
	statusCode = call(client, "POST", purchaseURL, session.Token, nil, nil)
	if statusCode != http.StatusGone {
		log.Fatalf("second purchase: status %d, want 410", statusCode)
	}

	statusCode = call(client, "POST", base+"/v1/auth/logout", session.Token, nil, nil)
	if statusCode != http.StatusOK {
		log.Fatalf("logout: status %d", statusCode)
	}
	statusCode = call(client, "GET", base+"/v1/items", session.Token, nil, nil)
	if statusCode != http.StatusUnauthorized {
		log.Fatalf("revoked session: status %d, want 401", statusCode)
	}

	fmt.Printf("✅ recircuit smoke test passed: item=%s\n", created.ID)
}

func call(client *http.Client, method, url, token string, payload, out any) int {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			log.Fatalf("encode %s %s: %v", method, url, err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, url, body)
	if err != nil {
		log.Fatalf("build %s %s: %v", method, url, err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := client.Do(req)
	if err != nil {
		log.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			log.Fatalf("decode %s %s: %v", method, url, err)
		}
	} else {
		_, _ = io.Copy(io.Discard, resp.Body)
	}
	return resp.StatusCode
}
