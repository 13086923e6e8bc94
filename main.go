package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"

	"github.com/logrusorgru/aurora"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	_ "github.com/samuelfneumann/qrclearn/agent/nonlinear/discrete/deepq"
	_ "github.com/samuelfneumann/qrclearn/agent/nonlinear/discrete/eqrc"
	"github.com/samuelfneumann/qrclearn/agent/nonlinear/discrete/valuebased"
	"github.com/samuelfneumann/qrclearn/collector"
	"github.com/samuelfneumann/qrclearn/experiment"
	"github.com/samuelfneumann/qrclearn/experiment/tracker"
	"github.com/samuelfneumann/qrclearn/utils/progressbar"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/stat"
)

var (
	configFile  = flag.String("config", "", "experiment YAML or JSON file")
	seed        = flag.Int64("seed", -1, "overrides the experiment's seed if non-negative")
	returnsFile = flag.String("returns", "returns.bin", "file to save episodic returns to")
	lengthsFile = flag.String("lengths", "", "file to save episode lengths to")
	metricsAddr = flag.String("metrics", "", "address to serve Prometheus metrics on, e.g. :2112")
	logLevel    = flag.String("log-level", "info", "logging level")
	logJSON     = flag.Bool("log-json", false, "log in JSON")
	progress    = flag.Bool("progress", true, "display a progress bar")
	window      = flag.Int("window", 100, "number of diagnostics in the summary window")
)

func main() {
	flag.Parse()

	level, err := logrus.ParseLevel(*logLevel)
	if err != nil {
		logrus.Fatalf("could not parse log level: %v", err)
	}
	logrus.SetLevel(level)
	if *logJSON {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	}

	if *configFile == "" {
		flag.Usage()
		os.Exit(2)
	}

	c, err := experiment.LoadConfig(*configFile)
	if err != nil {
		logrus.Fatalf("could not load experiment: %v", err)
	}
	if *seed >= 0 {
		c.Seed = uint64(*seed)
	}

	diagnostics := collector.NewWindow(*window)
	col := collector.Multi{diagnostics}
	if *metricsAddr != "" {
		reg := prometheus.NewRegistry()
		p, err := collector.NewPrometheus(reg, "qrclearn")
		if err != nil {
			logrus.Fatalf("could not create metrics collector: %v", err)
		}
		col = append(col, p)

		http.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		go func() {
			logrus.Infof("serving metrics at %v/metrics", *metricsAddr)
			if err := http.ListenAndServe(*metricsAddr, nil); err != nil {
				logrus.Errorf("metrics server stopped: %v", err)
			}
		}()
	}

	returns := tracker.NewReturn(*returnsFile)
	trackers := []tracker.Tracker{returns}
	if *lengthsFile != "" {
		trackers = append(trackers, tracker.NewEpisodeLength(*lengthsFile))
	}

	exp, err := c.CreateExp(col, trackers...)
	if err != nil {
		logrus.Fatalf("could not create experiment: %v", err)
	}
	defer exp.Close()

	var bar *progressbar.ManualProgressBar
	if *progress {
		bar = progressbar.NewManualProgressBar(os.Stdout, 50, c.MaxSteps,
			c.MaxSteps/100+1)
		exp.SetProgress(bar)
	}

	if err := exp.Run(); err != nil {
		logrus.Fatalf("experiment failed: %v", err)
	}
	if bar != nil {
		bar.Close()
	}

	if err := exp.Save(); err != nil {
		logrus.Fatalf("could not save experiment data: %v", err)
	}

	summarize(c, exp, returns.Returns(), diagnostics)
}

// summarize prints the outcome of the experiment
func summarize(c experiment.Config, exp *experiment.Online, returns []float64,
	diagnostics *collector.Window) {
	fmt.Println(aurora.Bold(fmt.Sprintf("%v on %v", c.AgentConf.Type,
		c.EnvConf.Environment)))
	fmt.Printf("  steps:    %v\n", aurora.Cyan(exp.Steps()))
	fmt.Printf("  episodes: %v\n", aurora.Cyan(len(returns)))

	if len(returns) > 0 {
		last := returns
		if len(last) > 10 {
			last = last[len(last)-10:]
		}
		fmt.Printf("  mean return (last %v): %v\n", len(last),
			aurora.Green(fmt.Sprintf("%.2f", stat.Mean(last, nil))))
	}

	if loss, ok := diagnostics.Mean(valuebased.LossMetric); ok {
		fmt.Printf("  mean loss (last %v updates): %v\n",
			len(diagnostics.Values(valuebased.LossMetric)),
			aurora.Yellow(fmt.Sprintf("%.4f", loss)))
	} else {
		fmt.Println(aurora.Red("  no updates were performed"))
	}
}
