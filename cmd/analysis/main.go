package main

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	"blindcash/coin"
	"blindcash/commitment"
	"blindcash/issuance"
	"blindcash/prof"
	"blindcash/randutil"
	"blindcash/redemption"
	"blindcash/rsablind"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/tuneinsight/lattigo/v4/utils"
)

type summaryStats struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	Std    float64 `json:"std"`
	Min    float64 `json:"min"`
	Median float64 `json:"median"`
	Max    float64 `json:"max"`
}

type ratePoint struct {
	X        int     `json:"x"`
	Trials   int     `json:"trials"`
	Hits     int     `json:"hits"`
	Measured float64 `json:"measured"`
	Expected float64 `json:"expected"`
}

type report struct {
	Trials        int                     `json:"trials"`
	KeyBits       int                     `json:"key_bits"`
	OwnerDetected []ratePoint             `json:"owner_detected"`
	ForgeryPassed []ratePoint             `json:"forgery_passed"`
	LatencyMicros map[string]summaryStats `json:"latency_us"`
}

// ------------------------------ stats utilities ------------------------------

func computeStats(x []float64) summaryStats {
	n := len(x)
	if n == 0 {
		return summaryStats{}
	}
	cp := append([]float64(nil), x...)
	sort.Float64s(cp)
	var m float64
	for _, v := range x {
		m += v
	}
	m /= float64(n)
	var m2 float64
	for _, v := range x {
		m2 += (v - m) * (v - m)
	}
	var std float64
	if n > 1 {
		std = math.Sqrt(m2 / float64(n-1))
	}
	return summaryStats{Count: n, Mean: m, Std: std, Min: cp[0], Median: quantileSorted(cp, 0.5), Max: cp[n-1]}
}

func quantileSorted(sorted []float64, p float64) float64 {
	pos := p * float64(len(sorted)-1)
	l := int(math.Floor(pos))
	r := int(math.Ceil(pos))
	if l == r {
		return sorted[l]
	}
	w := pos - float64(l)
	return sorted[l]*(1-w) + sorted[r]*w
}

// ------------------------------- experiments --------------------------------

// doubleSpend mints one coin, spends it twice and reports whether the owner
// was named.
func doubleSpend(rec *prof.Recorder, bank *rsablind.Signer, slots int, prng utils.PRNG) (bool, error) {
	start := time.Now()
	c, err := coin.New(bank.Public(), []byte("analysis-owner"), 1, slots, coin.WithPRNG(prng))
	if err != nil {
		return false, err
	}
	blindSig, err := bank.Sign(c.Blinded())
	if err != nil {
		return false, err
	}
	if err := c.AttachSignature(blindSig); err != nil {
		return false, err
	}
	if err := c.Unblind(); err != nil {
		return false, err
	}
	rec.Track(start, "mint")

	start = time.Now()
	first, err := redemption.Redeem(bank.Public(), c, prng)
	if err != nil {
		return false, err
	}
	second, err := redemption.Redeem(bank.Public(), c, prng)
	if err != nil {
		return false, err
	}
	v, err := redemption.IdentifyCheater(commitment.DefaultCodec, c.GUID(), first, second)
	if err != nil {
		return false, err
	}
	rec.Track(start, "redeem")
	return v.Cheater == redemption.Owner, nil
}

// forgery hides one off-template document among n and reports whether the
// signer still signed.
func forgery(rec *prof.Recorder, signer *rsablind.Signer, n int, prng utils.PRNG) (bool, error) {
	const prefix, suffix = "The bearer of this signed document, ", ", has full diplomatic immunity."
	bad, err := randutil.Intn(prng, n)
	if err != nil {
		return false, err
	}
	docs := make([][]byte, n)
	for i := range docs {
		docs[i] = []byte(fmt.Sprintf("%sAgent %d%s", prefix, i, suffix))
	}
	docs[bad] = []byte("The bearer may not be questioned.")
	defer rec.Track(time.Now(), "batch")
	b, err := issuance.NewBatch(signer.Public(), docs, prng)
	if err != nil {
		return false, err
	}
	_, _, err = issuance.Run(b, signer, prng, issuance.WithPolicy(issuance.MatchTemplate(prefix, suffix)))
	return auditOutcome(err)
}

// auditOutcome maps the result of issuance.Run to whether the batch was
// signed. Only an audit rejection counts as a caught forgery; any other
// failure aborts the experiment.
func auditOutcome(err error) (bool, error) {
	if err == nil {
		return true, nil
	}
	var pm *issuance.ProofMismatchError
	if errors.As(err, &pm) {
		return false, nil
	}
	return false, err
}

// ------------------------- plotting: go-echarts HTML -------------------------

func newRateChart(title, xName, expectedName string, points []ratePoint) *charts.Line {
	xLabels := make([]string, len(points))
	measured := make([]opts.LineData, len(points))
	expected := make([]opts.LineData, len(points))
	for i, p := range points {
		xLabels[i] = fmt.Sprintf("%d", p.X)
		measured[i] = opts.LineData{Value: p.Measured}
		expected[i] = opts.LineData{Value: p.Expected}
	}
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: fmt.Sprintf("%d trials per point", points[0].Trials)}),
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Width: "1000px", Height: "500px"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: xName}),
		charts.WithYAxisOpts(opts.YAxis{Name: "rate", Min: 0, Max: 1}),
	)
	line.SetXAxis(xLabels).
		AddSeries("measured", measured).
		AddSeries(expectedName, expected).
		SetSeriesOptions(charts.WithLabelOpts(opts.Label{Show: opts.Bool(false)}))
	return line
}

// ------------------------------ JSON and I/O ------------------------------

func saveJSON(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

// ------------------------------- main routine -------------------------------

func main() {
	trials := flag.Int("trials", 200, "trials per data point")
	maxSlots := flag.Int("slots", 8, "largest number of identity slots")
	maxBatch := flag.Int("batch", 10, "largest cut-and-choose batch")
	keyBits := flag.Int("bits", rsablind.MinKeyBits, "RSA modulus size")
	seed := flag.String("seed", "", "optional PRNG seed for reproducible runs")
	outDir := flag.String("out", "Measure_Reports", "output directory for reports")
	verbose := flag.Bool("v", false, "keep per-trial protocol logs")
	flag.Parse()

	if *trials < 1 || *maxSlots < 1 || *maxBatch < issuance.MinBatch {
		log.Fatalf("need trials >= 1, slots >= 1, batch >= %d", issuance.MinBatch)
	}
	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		log.Fatalf("mkdir: %v", err)
	}

	var prng utils.PRNG
	var err error
	if *seed != "" {
		prng, err = randutil.Seeded([]byte(*seed))
	} else {
		prng, err = randutil.New()
	}
	if err != nil {
		log.Fatalf("prng: %v", err)
	}

	signer, err := rsablind.GenerateKey(rand.Reader, *keyBits)
	if err != nil {
		log.Fatalf("keygen: %v", err)
	}
	defer signer.Close()

	logOut := log.Writer()
	quiet := func() {
		if !*verbose {
			log.SetOutput(io.Discard)
		}
	}
	loud := func() { log.SetOutput(logOut) }

	rep := report{Trials: *trials, KeyBits: *keyBits, LatencyMicros: map[string]summaryStats{}}
	var rec prof.Recorder

	for k := 1; k <= *maxSlots; k++ {
		log.Printf("[analysis] double spend, %d slots", k)
		hits := 0
		quiet()
		for i := 0; i < *trials; i++ {
			owner, err := doubleSpend(&rec, signer, k, prng)
			if err != nil {
				loud()
				log.Fatalf("double spend: %v", err)
			}
			if owner {
				hits++
			}
		}
		loud()
		// Per-slot side choice would expose the owner unless all k bits agree.
		rep.OwnerDetected = append(rep.OwnerDetected, ratePoint{
			X: k, Trials: *trials, Hits: hits,
			Measured: float64(hits) / float64(*trials),
			Expected: 1 - math.Pow(2, -float64(k)),
		})
	}

	for n := issuance.MinBatch; n <= *maxBatch; n++ {
		log.Printf("[analysis] cut-and-choose, batch %d", n)
		hits := 0
		quiet()
		for i := 0; i < *trials; i++ {
			passed, err := forgery(&rec, signer, n, prng)
			if err != nil {
				loud()
				log.Fatalf("forgery: %v", err)
			}
			if passed {
				hits++
			}
		}
		loud()
		rep.ForgeryPassed = append(rep.ForgeryPassed, ratePoint{
			X: n, Trials: *trials, Hits: hits,
			Measured: float64(hits) / float64(*trials),
			Expected: 1 / float64(n),
		})
	}
	for _, label := range rec.Labels() {
		rep.LatencyMicros[label] = computeStats(rec.Micros(label))
	}

	ts := time.Now().Format("20060102_150405")
	jsonPath := filepath.Join(*outDir, fmt.Sprintf("protocol_rates_%s.json", ts))
	if err := saveJSON(jsonPath, rep); err != nil {
		log.Printf("warn: save report: %v", err)
	}

	page := components.NewPage()
	page.AddCharts(
		newRateChart("Owner identified on double spend", "identity slots", "per-slot side choice", rep.OwnerDetected),
		newRateChart("Forged document signed", "batch size", "1/n", rep.ForgeryPassed),
	)
	htmlPath := filepath.Join(*outDir, fmt.Sprintf("protocol_rates_%s.html", ts))
	f, err := os.Create(htmlPath)
	if err != nil {
		log.Fatalf("create html: %v", err)
	}
	defer f.Close()
	if err := page.Render(f); err != nil {
		log.Fatalf("render html: %v", err)
	}
	fmt.Println("Rate page:", htmlPath)
	fmt.Println("Report JSON:", jsonPath)
}
