// scatterupdate evaluates the ScatterElementsUpdate cases of a YAML file and prints a report.
//
// Usage:
//
//	scatterupdate -cases=cases.yaml [-backend=go:pool=false] [-parallel=4] [-progress]
//
// It exits with status 1 if any case fails, or if the output doesn't match the expected value of the case.
package main

import (
	"flag"
	"fmt"
	"os"
	"runtime"

	"github.com/dustin/go-humanize"
	"github.com/gomlx/exceptions"
	"github.com/gomlx/scatterupdate/backends"
	_ "github.com/gomlx/scatterupdate/backends/default"
	"github.com/janpfeifer/must"
	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"
)

var (
	flagCases   = flag.String("cases", "", "YAML file with the cases to evaluate.")
	flagBackend = flag.String("backend", "", fmt.Sprintf("Backend configuration, in the form \"<name>:<options>\". "+
		"If empty, it uses $%s, or the default backend.", backends.ConfigEnvVar))
	flagParallel = flag.Int("parallel", runtime.NumCPU(), "Maximum number of cases evaluated in parallel.")
	flagProgress = flag.Bool("progress", false, "Display a progress bar while evaluating the cases.")
)

// caseResult of the evaluation of one case.
type caseResult struct {
	name, shape, bytes, status, values string
	failed                             bool
}

func main() {
	klog.InitFlags(nil)
	flag.Parse()
	if *flagCases == "" {
		klog.Errorf("Missing -cases file. See 'scatterupdate -help'")
		os.Exit(1)
	}
	cases := must.M1(LoadCases(*flagCases))

	var backend backends.Backend
	if *flagBackend != "" {
		backend = must.M1(backends.NewWithConfig(*flagBackend))
	} else {
		backend = backends.MustNew()
	}
	defer backend.Finalize()
	klog.V(1).Infof("Backend %q: %s", backend.Name(), backend.Description())

	results := evaluateAll(backend, cases, *flagParallel, *flagProgress)
	fmt.Println(titleStyle.Render(fmt.Sprintf("ScatterElementsUpdate (%s)", backend.Name())))
	fmt.Println(renderReport(results))
	var numFailed int
	for _, result := range results {
		if result.failed {
			numFailed++
		}
	}
	if numFailed > 0 {
		klog.Errorf("%d out of %d cases failed", numFailed, len(results))
		backend.Finalize()
		os.Exit(1)
	}
}

// evaluateAll cases concurrently, up to parallelism at a time. Results are returned in the order of the cases.
func evaluateAll(backend backends.Backend, cases []*Case, parallelism int, withProgress bool) []caseResult {
	results := make([]caseResult, len(cases))
	var bar *progressbar.ProgressBar
	if withProgress {
		bar = progressbar.NewOptions(len(cases),
			progressbar.OptionSetDescription("      [bold]"),
			progressbar.OptionUseANSICodes(true),
			progressbar.OptionEnableColorCodes(true),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("cases"),
			progressbar.OptionSetTheme(progressbar.ThemeUnicode),
			progressbar.OptionClearOnFinish(),
		)
	}
	var g errgroup.Group
	if parallelism > 0 {
		g.SetLimit(parallelism)
	}
	for ii, c := range cases {
		g.Go(func() error {
			if err := exceptions.TryCatch[error](func() { results[ii] = evaluate(backend, c) }); err != nil {
				klog.V(1).Infof("Case %q panicked: %+v", c.Name, err)
				results[ii] = caseResult{name: c.Name, status: "failed", values: err.Error(), failed: true}
			}
			if bar != nil {
				_ = bar.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()
	if bar != nil {
		_ = bar.Finish()
	}
	return results
}

// evaluate one case, and compare it to its expected value, if one was given.
func evaluate(backend backends.Backend, c *Case) caseResult {
	result := caseResult{name: c.Name, status: "ok"}
	fail := func(err error) caseResult {
		klog.V(1).Infof("Case %q failed: %+v", c.Name, err)
		result.failed = true
		result.status = "failed"
		result.values = err.Error()
		return result
	}
	inputs, err := c.build(backend.Capabilities())
	if err != nil {
		return fail(errors.WithMessagef(err, "invalid case %q", c.Name))
	}
	output, err := backend.ScatterElementsUpdate(inputs.data, inputs.indices, inputs.updates, inputs.axis, inputs.attrs)
	if err != nil {
		return fail(err)
	}
	defer backend.Recycle(output)
	result.shape = output.Shape().String()
	result.bytes = humanize.Bytes(uint64(output.Shape().Memory()))
	result.values = fmt.Sprintf("%v", output.Value())
	if inputs.expected != nil && !matches(output, inputs) {
		result.failed = true
		result.status = "mismatch"
		result.values = fmt.Sprintf("got %v, expected %v", output.Value(), inputs.expected.Value())
	}
	return result
}
