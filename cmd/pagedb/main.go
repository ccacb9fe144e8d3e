package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/kasuganosora/pagedb/pkg/api"
)

func main() {
	path := flag.String("db", "pagedb.data", "数据文件路径")
	debug := flag.Bool("debug", false, "输出优化后的计划树")
	flag.Parse()

	config := api.DefaultConfig()
	config.DebugMode = *debug
	if *debug {
		config.Logger = api.NewDefaultLogger(api.LogDebug)
	}

	db, err := api.Open(*path, config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open %s: %v\n", *path, err)
		os.Exit(1)
	}
	defer db.Close()

	fmt.Printf("pagedb on %s, type SQL or \\q to quit\n", *path)
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("pagedb> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "\\q" || strings.EqualFold(line, "exit") {
			break
		}
		result, err := db.Run(line)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			continue
		}
		if result != nil && len(result.Columns) > 0 {
			fmt.Print(api.FormatResult(result))
		}
		if result != nil {
			fmt.Printf("%d row(s)\n", result.RowCount())
		}
	}
}
