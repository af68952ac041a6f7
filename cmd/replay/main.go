// Command replay runs a recorded gaze stream through the analysis pipeline
// offline and writes the report artifacts next to the recording. The input is
// JSON Lines, one frame per line, in the same shape as the /api/frames body.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/lexiscan/readtrace/internal/config"
	"github.com/lexiscan/readtrace/internal/gaze"
	"github.com/lexiscan/readtrace/internal/report"
	"github.com/lexiscan/readtrace/internal/sessiondb"
)

var (
	input      = flag.String("input", "", "Path to a JSONL gaze recording (required)")
	outDir     = flag.String("out", "", "Output directory (defaults to the recording's directory)")
	tuningFile = flag.String("config", "", "Path to a tuning config JSON file (optional)")
	text       = flag.String("text", "", "Reading test text, enables reading speed output")
)

func main() {
	flag.Parse()

	if *input == "" {
		log.Fatal("-input is required")
	}
	if *outDir == "" {
		*outDir = filepath.Dir(*input)
	}

	tuning := config.EmptyTuningConfig()
	if *tuningFile != "" {
		var err error
		tuning, err = config.LoadTuningConfig(*tuningFile)
		if err != nil {
			log.Fatalf("Failed to load tuning config: %v", err)
		}
	}

	f, err := os.Open(*input)
	if err != nil {
		log.Fatalf("Failed to open recording: %v", err)
	}
	defer f.Close()

	pipeline := gaze.NewPipeline(tuning.Apply())
	defer pipeline.Release()

	var (
		timeline []sessiondb.TimelinePoint
		samples  []gaze.GazeSample
		last     gaze.FrameMetrics
		frames   int
	)

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var in gaze.FrameInput
		if err := json.Unmarshal([]byte(line), &in); err != nil {
			log.Fatalf("Bad frame on line %d: %v", frames+1, err)
		}
		frames++

		if *text != "" && frames == 1 {
			pipeline.StartReadingTest(*text, in.UnixNanos)
		}

		metrics, err := pipeline.ProcessFrame(in)
		if err != nil {
			log.Fatalf("Failed to process frame %d: %v", frames, err)
		}
		last = metrics

		if metrics.Skipped {
			continue
		}
		load := 0.0
		if metrics.CognitiveLoad != nil {
			load = metrics.CognitiveLoad.Score
		}
		timeline = append(timeline, sessiondb.TimelinePoint{
			UnixNanos:     metrics.UnixNanos,
			Probability:   metrics.Dyslexia.Probability,
			CognitiveLoad: load,
		})
		samples = append(samples, gaze.GazeSample{
			UnixNanos: in.UnixNanos,
			LeftGaze:  in.LeftGaze,
			RightGaze: in.RightGaze,
		})
	}
	if err := scanner.Err(); err != nil {
		log.Fatalf("Failed to read recording: %v", err)
	}
	if frames == 0 {
		log.Fatal("Recording contains no frames")
	}

	name := strings.TrimSuffix(filepath.Base(*input), filepath.Ext(*input))

	htmlPath := filepath.Join(*outDir, name+"_timeline.html")
	htmlFile, err := os.Create(htmlPath)
	if err != nil {
		log.Fatalf("Failed to create timeline file: %v", err)
	}
	if err := report.RenderTimeline(htmlFile, name, timeline); err != nil {
		log.Fatalf("Failed to render timeline: %v", err)
	}
	htmlFile.Close()

	pngPath := filepath.Join(*outDir, name+"_trace.png")
	if err := report.SaveTracePlot(pngPath, samples); err != nil {
		log.Fatalf("Failed to save gaze trace: %v", err)
	}

	fmt.Printf("Replayed %d frames (%d with landmarks)\n", frames, len(timeline))
	fmt.Printf("Final state: %s, probability %.3f (%s)\n",
		last.Dyslexia.State, last.Dyslexia.Probability, last.Dyslexia.Severity)
	fmt.Printf("Fixations: %d, regressions: %d, blink rate: %.1f/min\n",
		last.FixationCount, last.RegressionCount, last.BlinkRate)
	if *text != "" {
		fmt.Printf("Reading speed: %.1f wpm\n", last.ReadingSpeedWPM)
	}
	fmt.Printf("Wrote %s and %s\n", htmlPath, pngPath)
}
