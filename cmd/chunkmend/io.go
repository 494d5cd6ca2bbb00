package main

import (
	"bufio"
	"fmt"
	"os"
	"os/signal"
	"unicode"

	"golang.org/x/term"
)

// ConfirmDestructiveStep asks for a single-key yes/no decision before an
// irreversible operation. Only an interactive terminal is prompted, a
// scripted run (e.g. the inject command pasted from the diff output)
// proceeds without one. Ctrl+C and any key but y decline.
func ConfirmDestructiveStep(question string, allowEscapeSequences bool) bool {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return true
	}

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	defer signal.Reset(os.Interrupt)

	rawMode := false
	if allowEscapeSequences {
		if oldTermState, err := term.MakeRaw(int(os.Stdin.Fd())); err == nil {
			rawMode = true
			defer term.Restore(int(os.Stdin.Fd()), oldTermState)
		} // else terminal is not raw, i.e. ENTER is required to confirm input -> acceptable fallback
	}

	fmt.Fprintf(os.Stdout, "%s (y/N): ", question)

	key := make(chan rune)
	go func() {
		reader := bufio.NewReaderSize(os.Stdin, 1)
		input, err := reader.ReadByte()
		if err != nil {
			key <- 'n'
			return
		}
		if rawMode && input == 3 { //Ctrl+C
			interrupt <- os.Interrupt
			return
		}
		key <- rune(input)
	}()

	select {
	case letterPressed := <-key:
		confirmed := unicode.ToLower(letterPressed) == 'y'
		if rawMode {
			fmt.Fprintf(os.Stdout, "%c\r\n", unicode.ToUpper(letterPressed))
		}
		return confirmed
	case <-interrupt:
		fmt.Fprint(os.Stdout, "<CANCELLED>\r\n")
		return false
	}
}
