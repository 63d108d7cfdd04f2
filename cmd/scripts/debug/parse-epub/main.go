package main

import (
	"fmt"
	"os"

	"github.com/jessevdk/go-flags"
	"github.com/robinjoseph08/golib/logger"
	"github.com/segmentio/encoding/json"
	"github.com/shishobooks/folio/pkg/epub"
)

func main() {
	log := logger.New()

	var opts struct {
		JSON bool `short:"j" long:"json" description:"Print the metadata as JSON"`
	}

	args, err := flags.Parse(&opts)
	if err != nil {
		log.Err(err).Fatal("flags parse error")
	}

	if len(args) != 1 {
		fmt.Println("go run ./cmd/scripts/debug/parse-epub <path/to/file.epub>")
		os.Exit(1)
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		log.Err(err).Fatal("read file error")
	}

	metadata, err := epub.Parse(data)
	if err != nil {
		log.Err(err).Fatal("epub parse error")
	}

	if opts.JSON {
		out, err := json.MarshalIndent(metadata, "", "  ")
		if err != nil {
			log.Err(err).Fatal("json marshal error")
		}
		fmt.Println(string(out))
		return
	}

	series := metadata.Series
	if metadata.SeriesIndex != nil {
		series = fmt.Sprintf("%s #%v", series, *metadata.SeriesIndex)
	}
	fmt.Printf("Title: %s\nAuthor(s): %v\nLanguage: %s\nDate: %s\nSeries: %s\n", metadata.Title, metadata.Authors, metadata.Language, metadata.Date, series)
}
