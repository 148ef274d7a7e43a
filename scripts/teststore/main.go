// Command teststore serves a synthetic DICOMweb study for local benchmark runs:
//
//	go run ./scripts/teststore -port 8085 -instances 20 -frames 8
//	studybench --endpoint http://localhost:8085/v1 --project p --location l \
//	    --dataset d --dicom-store s --study 1.2.840.1 --token dev
package main

import (
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/torosent/studybench/internal/dicomweb/dicomwebtest"
)

func main() {
	port := flag.Int("port", 0, "Listening port")
	study := flag.String("study", "1.2.840.1", "Study instance UID to serve")
	instances := flag.Int("instances", 10, "Number of instances in the study")
	frames := flag.Int("frames", 4, "Frames per instance")
	frameSize := flag.Int("frame-size", 64*1024, "Bytes per frame")
	latency := flag.Duration("latency", 5*time.Millisecond, "Delay before every response")
	token := flag.String("token", "dev", "Required bearer token (empty disables the check)")
	cache := flag.String("cache", "MISS", "X-Cache header value on frame responses")
	failEvery := flag.Int("fail-every", 0, "Answer every Nth frame request with 503 (0 disables)")
	flag.Parse()

	if *port <= 0 {
		log.Fatalf("port must be > 0")
	}

	store := dicomwebtest.NewSyntheticStore(*study, *instances, *frames)
	store.FrameSize = *frameSize
	store.Latency = *latency
	store.Token = *token
	store.CacheHeader = *cache
	if *failEvery > 0 {
		var n atomic.Int64
		every := int64(*failEvery)
		store.FailFrame = func(string, string, int) int {
			if n.Add(1)%every == 0 {
				return http.StatusServiceUnavailable
			}
			return 0
		}
	}

	addr := net.JoinHostPort("127.0.0.1", fmt.Sprint(*port))
	log.Printf("serving study %s (%d instances x %d frames) on http://%s", *study, *instances, *frames, addr)
	server := &http.Server{
		Addr:              addr,
		Handler:           store,
		ReadHeaderTimeout: 5 * time.Second,
	}
	log.Fatal(server.ListenAndServe())
}
