// Command api_compare diffs JSON responses between two deployments of the
// admin API (e.g. staging against production) and exits non-zero when a
// critical endpoint diverges. Volatile fields like timestamps and cache meta
// are stripped before comparison.
package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"reflect"
	"strings"
	"time"
)

type target struct {
	Method   string `json:"method"`
	Path     string `json:"path"`
	Critical bool   `json:"critical"`
}

type targetsFile struct {
	Targets []target `json:"targets"`
}

// defaultTargets cover the read-only roster surface; mutating endpoints are
// deliberately excluded.
var defaultTargets = []target{
	{Method: "GET", Path: "/api/v1/admin/students", Critical: true},
	{Method: "GET", Path: "/api/v1/admin/students/emails", Critical: true},
	{Method: "GET", Path: "/api/v1/admin/students/operations/metrics", Critical: true},
	{Method: "GET", Path: "/api/v1/admin/students/operations/status", Critical: false},
	{Method: "GET", Path: "/api/v1/admin/classes", Critical: true},
	{Method: "GET", Path: "/api/v1/admin/course", Critical: false},
	{Method: "GET", Path: "/api/v1/admin/course/structure", Critical: true},
}

// volatileKeys are stripped from both responses before comparison.
var volatileKeys = map[string]bool{
	"created_at":         true,
	"updated_at":         true,
	"issued_at":          true,
	"generated_at":       true,
	"last_run_at":        true,
	"meta":               true,
	"processing_time_ms": true,
}

type comparison struct {
	Target      target
	StatusA     int
	StatusB     int
	StatusMatch bool
	BodyMatch   bool
	Error       error
	DurationA   time.Duration
	DurationB   time.Duration
}

func main() {
	var (
		baseA       string
		baseB       string
		tokenA      string
		tokenB      string
		targetsPath string
		timeout     time.Duration
	)

	flag.StringVar(&baseA, "base-a", "http://localhost:8080", "first deployment base URL")
	flag.StringVar(&baseB, "base-b", "", "second deployment base URL (required)")
	flag.StringVar(&tokenA, "token-a", "", "bearer token for the first deployment")
	flag.StringVar(&tokenB, "token-b", "", "bearer token for the second deployment")
	flag.StringVar(&targetsPath, "targets", "", "optional JSON targets file; defaults to the built-in roster endpoints")
	flag.DurationVar(&timeout, "timeout", 30*time.Second, "HTTP client timeout")
	flag.Parse()

	if baseB == "" {
		log.Fatal("-base-b is required")
	}

	targets := defaultTargets
	if targetsPath != "" {
		loaded, err := loadTargets(targetsPath)
		if err != nil {
			log.Fatalf("failed to load targets: %v", err)
		}
		targets = loaded
	}

	client := &http.Client{Timeout: timeout}
	var (
		results  []comparison
		breaking int
		optional int
	)

	for _, t := range targets {
		comp := compareTarget(client, baseA, baseB, tokenA, tokenB, t)
		if comp.Error != nil || !comp.StatusMatch || !comp.BodyMatch {
			if t.Critical {
				breaking++
			} else {
				optional++
			}
		}
		results = append(results, comp)
	}

	printReport(results)

	fmt.Printf("Breaking diffs: %d, Optional diffs: %d\n", breaking, optional)
	if breaking > 0 {
		os.Exit(1)
	}
}

func loadTargets(path string) ([]target, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var file targetsFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, err
	}
	if len(file.Targets) == 0 {
		return nil, fmt.Errorf("no targets defined in %s", path)
	}
	return file.Targets, nil
}

func compareTarget(client *http.Client, baseA, baseB, tokenA, tokenB string, tgt target) comparison {
	comp := comparison{Target: tgt}

	respA, durA, errA := performRequest(client, baseA, tokenA, tgt)
	respB, durB, errB := performRequest(client, baseB, tokenB, tgt)
	comp.DurationA = durA
	comp.DurationB = durB

	if errA != nil {
		comp.Error = fmt.Errorf("request to %s failed: %w", baseA, errA)
		return comp
	}
	if errB != nil {
		comp.Error = fmt.Errorf("request to %s failed: %w", baseB, errB)
		return comp
	}
	defer respA.Body.Close()
	defer respB.Body.Close()

	comp.StatusA = respA.StatusCode
	comp.StatusB = respB.StatusCode
	comp.StatusMatch = comp.StatusA == comp.StatusB

	bodyA, err := io.ReadAll(respA.Body)
	if err != nil {
		comp.Error = fmt.Errorf("read body: %w", err)
		return comp
	}
	bodyB, err := io.ReadAll(respB.Body)
	if err != nil {
		comp.Error = fmt.Errorf("read body: %w", err)
		return comp
	}

	comp.BodyMatch = bodiesEqual(bodyA, bodyB)
	return comp
}

func performRequest(client *http.Client, base, token string, tgt target) (*http.Response, time.Duration, error) {
	if client == nil {
		return nil, 0, errors.New("nil client")
	}
	method := strings.ToUpper(strings.TrimSpace(tgt.Method))
	if method == "" {
		method = http.MethodGet
	}
	path := tgt.Path
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	req, err := http.NewRequest(method, strings.TrimRight(base, "/")+path, nil)
	if err != nil {
		return nil, 0, err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	return resp, time.Since(start), nil
}

func bodiesEqual(a, b []byte) bool {
	if bytes.Equal(bytes.TrimSpace(a), bytes.TrimSpace(b)) {
		return true
	}

	var aj, bj interface{}
	if err := json.Unmarshal(a, &aj); err != nil {
		return false
	}
	if err := json.Unmarshal(b, &bj); err != nil {
		return false
	}
	normalize(&aj)
	normalize(&bj)
	return reflect.DeepEqual(aj, bj)
}

// normalize strips volatile fields and collapses whole-number floats so both
// deployments compare structurally.
func normalize(v *interface{}) {
	switch val := (*v).(type) {
	case map[string]interface{}:
		for k := range val {
			if volatileKeys[k] {
				delete(val, k)
			}
		}
		for k, v2 := range val {
			normalize(&v2)
			val[k] = v2
		}
	case []interface{}:
		for i, v2 := range val {
			normalize(&v2)
			val[i] = v2
		}
	case float64:
		if val == float64(int64(val)) {
			*v = int64(val)
		}
	}
}

func printReport(results []comparison) {
	fmt.Println("API Compare Report")
	fmt.Println("===================")
	for _, res := range results {
		status := "OK"
		if res.Error != nil {
			status = "ERROR"
		} else if !res.StatusMatch || !res.BodyMatch {
			status = "DIFF"
		}
		fmt.Printf("[%s] %s %s\n", status, res.Target.Method, res.Target.Path)
		fmt.Printf("  A: %d (%s) | B: %d (%s)\n", res.StatusA, res.DurationA, res.StatusB, res.DurationB)
		if res.Error != nil {
			fmt.Printf("  Error: %v\n", res.Error)
		} else {
			fmt.Printf("  Status match: %t | Body match: %t | Critical: %t\n", res.StatusMatch, res.BodyMatch, res.Target.Critical)
		}
	}
}
