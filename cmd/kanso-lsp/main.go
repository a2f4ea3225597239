// SPDX-License-Identifier: Apache-2.0
package main

import (
	"flag"
	"os"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"
	protocol "github.com/tliron/glsp/protocol_3_16"
	"github.com/tliron/glsp/server"

	"kanso-verify/internal/config"
	"kanso-verify/internal/lsp"
)

const lsName = "kanso-verify"

var (
	version = "0.1.0"
	handler protocol.Handler
)

func main() {
	configPath := flag.String("config", "", "config file (default ./"+config.DefaultFile+" if present)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		commonlog.Configure(1, nil)
		commonlog.GetLogger("kanso.verify.lsp").Errorf("%s", err)
		os.Exit(1)
	}
	// stdout carries the protocol, so logs go to stderr or the log file
	if cfg.Log.File != "" {
		commonlog.Configure(cfg.Log.Verbosity, &cfg.Log.File)
	} else {
		commonlog.Configure(cfg.Log.Verbosity, nil)
	}
	log := commonlog.GetLogger("kanso.verify.lsp")

	composer, closeCache, err := cfg.NewComposer(nil)
	if err != nil {
		log.Errorf("%s", err)
		os.Exit(1)
	}
	defer closeCache()

	kansoHandler := lsp.NewKansoHandler(composer)

	handler = protocol.Handler{
		Initialize:                     kansoHandler.Initialize,
		Initialized:                    kansoHandler.Initialized,
		Shutdown:                       kansoHandler.Shutdown,
		SetTrace:                       kansoHandler.SetTrace,
		TextDocumentDidOpen:            kansoHandler.TextDocumentDidOpen,
		TextDocumentDidClose:           kansoHandler.TextDocumentDidClose,
		TextDocumentDidChange:          kansoHandler.TextDocumentDidChange,
		TextDocumentDidSave:            kansoHandler.TextDocumentDidSave,
		TextDocumentHover:              kansoHandler.TextDocumentHover,
		TextDocumentSemanticTokensFull: kansoHandler.TextDocumentSemanticTokensFull,
	}

	s := server.NewServer(&handler, lsName, false)
	log.Infof("starting %s %s", lsName, version)

	if err := s.RunStdio(); err != nil {
		log.Errorf("server stopped: %s", err)
		closeCache()
		os.Exit(1)
	}
}
