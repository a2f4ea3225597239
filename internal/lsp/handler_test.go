package lsp_test

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"kanso-verify/internal/compose"
	"kanso-verify/internal/lsp"
	"kanso-verify/internal/solver"
)

const source = `contract Token {
    #[storage]
    struct State {
        balances: Slots<Address, U256>,
    }

    /// @ensures return == State.balances[owner]
    fn balance(owner: Address) -> U256 {
        State.balances[owner]
    }

    /// @decl $b: U256
    /// @requires State.balances[to] == $b
    /// @update State.balances[to] == old + amount
    fn deposit(to: Address, amount: U256) writes(State) {
        State.balances[to] = State.balances[to] + amount + 1;
    }
}
`

type session struct {
	handler     *lsp.KansoHandler
	ctx         *glsp.Context
	uri         string
	diagnostics []protocol.Diagnostic
}

func newSession(t *testing.T) *session {
	t.Helper()
	path := filepath.Join(t.TempDir(), "token.ka")
	require.NoError(t, os.WriteFile(path, []byte(source), 0o600))

	s := &session{
		handler: lsp.NewKansoHandler(compose.New(solver.NewSampler(), compose.Options{})),
		uri:     "file://" + filepath.ToSlash(path),
	}
	s.ctx = &glsp.Context{Notify: func(method string, params any) {
		if method != protocol.ServerTextDocumentPublishDiagnostics {
			return
		}
		s.diagnostics = params.(*protocol.PublishDiagnosticsParams).Diagnostics
	}}
	return s
}

func (s *session) open(t *testing.T) {
	t.Helper()
	require.NoError(t, s.handler.TextDocumentDidOpen(s.ctx, &protocol.DidOpenTextDocumentParams{
		TextDocument: protocol.TextDocumentItem{URI: s.uri, LanguageID: "kanso", Text: source},
	}))
}

func TestDidOpenPublishesVerdicts(t *testing.T) {
	s := newSession(t)
	s.open(t)

	require.Len(t, s.diagnostics, 1)
	d := s.diagnostics[0]
	assert.Equal(t, protocol.DiagnosticSeverityError, *d.Severity)
	assert.Equal(t, "kanso-verify", *d.Source)
	assert.True(t, strings.HasPrefix(d.Message, "deposit: Falsified (storage-update State.balances"), d.Message)
	assert.Contains(t, d.Message, "counterexample:")
	// the @update clause
	assert.Equal(t, uint32(13), d.Range.Start.Line)
	assert.Equal(t, uint32(8), d.Range.Start.Character)
}

func TestDidChangeReportsSyntaxErrors(t *testing.T) {
	s := newSession(t)
	s.open(t)

	broken := strings.Replace(source, "fn balance(owner: Address)", "fn balance(owner Address", 1)
	require.NoError(t, s.handler.TextDocumentDidChange(s.ctx, &protocol.DidChangeTextDocumentParams{
		TextDocument:   protocol.VersionedTextDocumentIdentifier{TextDocumentIdentifier: protocol.TextDocumentIdentifier{URI: s.uri}},
		ContentChanges: []any{protocol.TextDocumentContentChangeEventWhole{Text: broken}},
	}))

	require.NotEmpty(t, s.diagnostics)
	for _, d := range s.diagnostics {
		assert.NotEqual(t, "kanso-verify", *d.Source)
	}

	// an edit that still parses keeps the last verdicts
	require.NoError(t, s.handler.TextDocumentDidChange(s.ctx, &protocol.DidChangeTextDocumentParams{
		TextDocument:   protocol.VersionedTextDocumentIdentifier{TextDocumentIdentifier: protocol.TextDocumentIdentifier{URI: s.uri}},
		ContentChanges: []any{protocol.TextDocumentContentChangeEventWhole{Text: source + "\n"}},
	}))
	require.Len(t, s.diagnostics, 1)
	assert.Equal(t, "kanso-verify", *s.diagnostics[0].Source)
}

func TestDidSaveVerifiesAgain(t *testing.T) {
	s := newSession(t)
	s.open(t)

	fixed := strings.Replace(source, "State.balances[to] + amount + 1;", "amount + State.balances[to];", 1)
	require.NoError(t, s.handler.TextDocumentDidSave(s.ctx, &protocol.DidSaveTextDocumentParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: s.uri},
		Text:         &fixed,
	}))

	// the sampler cannot prove the fixed update, so it stays undecided
	require.Len(t, s.diagnostics, 1)
	assert.Equal(t, protocol.DiagnosticSeverityWarning, *s.diagnostics[0].Severity)
	assert.True(t, strings.HasPrefix(s.diagnostics[0].Message, "deposit: Error (undecided"), s.diagnostics[0].Message)
}

func TestHover(t *testing.T) {
	s := newSession(t)
	s.open(t)

	hover, err := s.handler.TextDocumentHover(s.ctx, &protocol.HoverParams{
		TextDocumentPositionParams: protocol.TextDocumentPositionParams{
			TextDocument: protocol.TextDocumentIdentifier{URI: s.uri},
			Position:     protocol.Position{Line: 8, Character: 8},
		},
	})
	require.NoError(t, err)
	require.NotNil(t, hover)
	assert.Equal(t, "**balance**: Verified", hover.Contents.(protocol.MarkupContent).Value)

	hover, err = s.handler.TextDocumentHover(s.ctx, &protocol.HoverParams{
		TextDocumentPositionParams: protocol.TextDocumentPositionParams{
			TextDocument: protocol.TextDocumentIdentifier{URI: s.uri},
			Position:     protocol.Position{Line: 15, Character: 8},
		},
	})
	require.NoError(t, err)
	require.NotNil(t, hover)
	assert.Contains(t, hover.Contents.(protocol.MarkupContent).Value, "**deposit**: Falsified")
}

func TestTextDocumentSemanticTokensFull(t *testing.T) {
	s := newSession(t)

	tokens, err := s.handler.TextDocumentSemanticTokensFull(s.ctx, &protocol.SemanticTokensParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: s.uri},
	})
	require.NoError(t, err)
	require.NotNil(t, tokens)

	decoded, err := decodeSemanticTokens(tokens.Data)
	require.NoError(t, err)
	require.NotEmpty(t, decoded)

	assertToken(t, find(t, decoded, 4, 9), 4, 9, 8, "property", []string{"declaration"})
	assertToken(t, find(t, decoded, 7, 9), 7, 9, 8, "keyword", nil)
	assertToken(t, find(t, decoded, 8, 8), 8, 8, 7, "function", []string{"declaration"})
	assertToken(t, find(t, decoded, 8, 16), 8, 16, 5, "parameter", []string{"declaration"})
	assertToken(t, find(t, decoded, 12, 9), 12, 9, 5, "keyword", nil)
	assertToken(t, find(t, decoded, 12, 15), 12, 15, 2, "variable", []string{"declaration"})
	assertToken(t, find(t, decoded, 13, 9), 13, 9, 9, "keyword", nil)
	assertToken(t, find(t, decoded, 13, 41), 13, 41, 2, "variable", nil)
	assertToken(t, find(t, decoded, 14, 9), 14, 9, 7, "keyword", nil)

	for i := 1; i < len(decoded); i++ {
		prev, cur := decoded[i-1], decoded[i]
		assert.True(t, prev.Line < cur.Line || (prev.Line == cur.Line && prev.Char < cur.Char), "tokens out of order at %d", i)
	}
}

type DecodedToken struct {
	Index     int
	Line      uint32
	Char      uint32
	Length    uint32
	Type      string
	Modifiers []string
}

func decodeSemanticTokens(raw []uint32) ([]DecodedToken, error) {
	if len(raw)%5 != 0 {
		return nil, fmt.Errorf("raw token data length %d is not a multiple of 5", len(raw))
	}

	var (
		decoded []DecodedToken
		line    uint32
		char    uint32
	)

	for i := 0; i < len(raw); i += 5 {
		deltaLine := raw[i]
		deltaStart := raw[i+1]
		length := raw[i+2]
		tokenTypeIdx := raw[i+3]
		tokenModMask := raw[i+4]

		if deltaLine == 0 {
			char += deltaStart
		} else {
			line += deltaLine
			char = deltaStart
		}

		var modifiers []string
		for j, name := range lsp.SemanticTokenModifiers {
			if tokenModMask&(1<<j) != 0 {
				modifiers = append(modifiers, name)
			}
		}

		decoded = append(decoded, DecodedToken{
			Index:     i / 5,
			Line:      line + 1, // LSP uses 0-based indexing
			Char:      char + 1, // LSP uses 0-based indexing
			Length:    length,
			Type:      lsp.SemanticTokenTypes[tokenTypeIdx],
			Modifiers: modifiers,
		})
	}

	return decoded, nil
}

func find(t *testing.T, tokens []DecodedToken, line, char uint32) *DecodedToken {
	t.Helper()
	for i := range tokens {
		if tokens[i].Line == line && tokens[i].Char == char {
			return &tokens[i]
		}
	}
	require.Failf(t, "missing token", "no token at %d:%d", line, char)
	return nil
}

func assertToken(t *testing.T, token *DecodedToken, expectedLine, expectedChar, expectedLength uint32, expectedType string, expectedModifiers []string) {
	require.Equal(t, expectedLine, token.Line, "line mismatch (expected line %d)", expectedLine)
	require.Equal(t, expectedChar, token.Char, "char mismatch (expected char %d)", expectedChar)
	require.Equal(t, expectedLength, token.Length, "length mismatch")
	require.Equal(t, expectedType, token.Type, "type mismatch")
	require.ElementsMatch(t, expectedModifiers, token.Modifiers, "modifiers mismatch")
}
