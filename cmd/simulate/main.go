package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/fatih/color"
)

const baseURL = "http://localhost:3000/api/understanding/v1"

// Pretty print JSON helper
func prettyPrint(v interface{}) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Printf("%v\n", v)
		return
	}
	fmt.Println(string(b))
}

// Request helper
func sendRequest(method, url string, body interface{}) (*http.Response, []byte, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		bodyReader = bytes.NewBuffer(jsonBody)
	}

	req, err := http.NewRequest(method, baseURL+url, bodyReader)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	return resp, respBody, err
}

type queryEnvelope struct {
	Data struct {
		QueryID     string `json:"queryId"`
		SessionID   string `json:"sessionId"`
		Ambiguous   bool   `json:"ambiguous"`
		ParsedQuery struct {
			Intent   string            `json:"intent"`
			Entities map[string]string `json:"entities"`
		} `json:"parsedQuery"`
		Suggestions []struct {
			ID   string `json:"id"`
			Text string `json:"text"`
		} `json:"suggestions"`
	} `json:"data"`
}

func ask(sessionID, query string) (*queryEnvelope, error) {
	payload := map[string]interface{}{"query": query}
	if sessionID != "" {
		payload["contextId"] = sessionID
	}
	resp, body, err := sendRequest("POST", "/query", payload)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != 200 {
		return nil, fmt.Errorf("status %s: %s", resp.Status, string(body))
	}
	var env queryEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, err
	}
	return &env, nil
}

func main() {
	color.Cyan("🚀 Airport Capacity Query Understanding Walkthrough\n")

	// 1. Colloquial query with an abbreviated terminal
	color.Yellow("\n[1] Colloquial query: \"Whats the capacity of T1?\"")
	env, err := ask("", "Whats the capacity of T1?")
	if err != nil {
		color.Red("Failed: %v", err)
		os.Exit(1)
	}
	sessionID := env.Data.SessionID
	color.Green("Intent: %s, Entities: %v, Ambiguous: %v", env.Data.ParsedQuery.Intent, env.Data.ParsedQuery.Entities, env.Data.Ambiguous)
	for _, s := range env.Data.Suggestions {
		fmt.Printf("  suggestion: %s\n", s.Text)
	}

	// 2. Contextual follow-up inheriting the terminal
	color.Yellow("\n[2] Follow-up: \"what about the capacity?\"")
	env2, err := ask(sessionID, "what about the capacity?")
	if err != nil {
		color.Red("Failed: %v", err)
		os.Exit(1)
	}
	color.Green("Intent: %s, Entities: %v", env2.Data.ParsedQuery.Intent, env2.Data.ParsedQuery.Entities)

	// 3. Ambiguous query, then resolve it
	color.Yellow("\n[3] Ambiguous query: \"What is the capacity of the terminal?\"")
	env3, err := ask(sessionID, "What is the capacity of the terminal?")
	if err != nil {
		color.Red("Failed: %v", err)
		os.Exit(1)
	}
	color.Green("Ambiguous: %v", env3.Data.Ambiguous)

	if env3.Data.Ambiguous {
		color.Yellow("\n[3b] Resolving with Terminal 2")
		resolution := map[string]interface{}{
			"queryId":   env3.Data.QueryID,
			"contextId": sessionID,
			"response": map[string]interface{}{
				"entity": map[string]string{"entityType": "terminal", "entityValue": "Terminal 2"},
			},
		}
		resp, body, err := sendRequest("POST", "/disambiguate", resolution)
		if err != nil {
			color.Red("Failed: %v", err)
			os.Exit(1)
		}
		color.Green("Status: %s", resp.Status)
		var resolved map[string]interface{}
		json.Unmarshal(body, &resolved)
		prettyPrint(resolved)
	}

	// 4. Track usage of the first suggestion from step 1
	if len(env.Data.Suggestions) > 0 {
		color.Yellow("\n[4] Tracking suggestion usage")
		resp, body, err := sendRequest("POST", "/suggestions/"+env.Data.Suggestions[0].ID+"/used", map[string]string{"contextId": sessionID})
		if err != nil {
			color.Red("Failed: %v", err)
			os.Exit(1)
		}
		color.Green("Status: %s | %s", resp.Status, string(body))
	}

	// 5. Submit a correction and apply learning
	color.Yellow("\n[5] Submitting feedback: \"gimme\" means \"show\"")
	fb := map[string]interface{}{
		"queryId":   env.Data.QueryID,
		"contextId": sessionID,
		"query":     "gimme stand allocation",
		"rating":    2,
		"correction": map[string]interface{}{
			"query": "show stand allocation",
		},
	}
	resp, body, err := sendRequest("POST", "/feedback", fb)
	if err != nil {
		color.Red("Failed: %v", err)
		os.Exit(1)
	}
	color.Green("Status: %s | %s", resp.Status, string(body))

	color.Yellow("\n[5b] Applying feedback learning")
	resp, body, err = sendRequest("POST", "/learn/apply", map[string]string{"contextId": sessionID})
	if err != nil {
		color.Red("Failed: %v", err)
		os.Exit(1)
	}
	color.Green("Status: %s", resp.Status)
	var learned map[string]interface{}
	json.Unmarshal(body, &learned)
	prettyPrint(learned)

	// 6. Pipeline metrics
	color.Yellow("\n[6] Metrics summary")
	_, body, err = sendRequest("GET", "/metrics-summary", nil)
	if err != nil {
		color.Red("Failed: %v", err)
		os.Exit(1)
	}
	var metrics map[string]interface{}
	json.Unmarshal(body, &metrics)
	prettyPrint(metrics)

	color.Cyan("\n✅ Walkthrough complete")
}
