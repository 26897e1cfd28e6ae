package logging

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pterm/pterm"

	"bonsaic/pkg/diag"
)

var (
	SuccessColorFG = pterm.FgLightGreen
	SuccessStyleBG = pterm.NewStyle(pterm.BgLightGreen, pterm.FgBlack)
	WarnColorFG    = pterm.FgYellow
	WarnStyleBG    = pterm.NewStyle(pterm.BgYellow, pterm.FgBlack)
	ErrorColorFG   = pterm.FgRed
	ErrorStyleBG   = pterm.NewStyle(pterm.BgRed, pterm.FgWhite)
	InfoColorFG    = SuccessColorFG
	InfoStyleBG    = SuccessStyleBG
)

// PrintErrorMessage prints a standard Go error to the console
func PrintErrorMessage(tag string, err error) {
	ErrorStyleBG.Print(tag)
	ErrorColorFG.Println(" " + err.Error())
}

// PrintWarningMessage prints a warning message to the console
func PrintWarningMessage(tag, msg string) {
	WarnStyleBG.Print(tag)
	WarnColorFG.Println(" " + msg)
}

// PrintInfoMessage prints an informational message to the user
func PrintInfoMessage(tag, msg string) {
	InfoStyleBG.Print(tag)
	InfoColorFG.Println(" " + msg)
}

var kindTitles = map[diag.Kind]string{
	diag.MalformedConstant:      "Constant",
	diag.UndeclaredVariable:     "Name",
	diag.DuplicateDeclaration:   "Definition",
	diag.UnrecognisedConstruct:  "Syntax",
	diag.TypeMismatch:           "Type",
	diag.UnsupportedType:        "Type",
	diag.UnsupportedOperator:    "Operator",
	diag.UnsupportedCast:        "Type",
	diag.UnsupportedOperandType: "Type",
	diag.UnsupportedCallTarget:  "Call",
	diag.BreakOutsideLoop:       "Usage",
	diag.ContinueOutsideLoop:    "Usage",
	diag.UnresolvedVariable:     "Name",
	diag.NonConstantInitializer: "Initializer",
}

// displayCompileError prints the banner, the message and, when the error
// carries a line, the offending source line.
func displayCompileError(file string, src []string, err error) {
	title := "Compile"
	line := 0
	var de *diag.Error
	if errors.As(err, &de) {
		if t, ok := kindTitles[de.Kind]; ok {
			title = t
		}
		line = de.Line
	}

	fmt.Print("\n-- ")
	ErrorStyleBG.Print(title + " Error")
	fmt.Print(" ")

	bannerLen := pterm.GetTerminalWidth() / 2
	if bannerLen > 50 {
		bannerLen = 50
	}
	dashCount := bannerLen - len(file) - len(title) - 7
	if dashCount < 2 {
		dashCount = 2
	}
	fmt.Print(strings.Repeat("-", dashCount) + " ")
	InfoColorFG.Println(file)
	fmt.Println(err.Error())

	if line > 0 && line <= len(src) {
		fmt.Println()
		width := len(strconv.Itoa(line)) + 1
		InfoColorFG.Print(fmt.Sprintf("%-"+strconv.Itoa(width)+"v", line))
		fmt.Print("|  ")
		fmt.Println(strings.ReplaceAll(src[line-1], "\t", "    "))
		fmt.Println()
	}
}

// phaseSpinner stores the current phase spinner
var phaseSpinner *pterm.SpinnerPrinter
var currentPhase string
var phaseStartTime time.Time

const maxPhaseLength = len("Generating")

func displayBeginPhase(phase string) {
	currentPhase = phase
	phaseText := phase + "..." + strings.Repeat(" ", maxPhaseLength-len(phase)+2)
	phaseSpinner = pterm.DefaultSpinner.WithStyle(pterm.NewStyle(InfoColorFG))

	phaseSpinner.SuccessPrinter = &pterm.PrefixPrinter{
		MessageStyle: pterm.NewStyle(pterm.FgDefault),
		Prefix: pterm.Prefix{
			Style: SuccessStyleBG,
			Text:  "Done",
		},
	}

	phaseSpinner.FailPrinter = &pterm.PrefixPrinter{
		MessageStyle: pterm.NewStyle(pterm.FgDefault),
		Prefix: pterm.Prefix{
			Style: ErrorStyleBG,
			Text:  "Fail",
		},
	}

	phaseSpinner.Start(phaseText)
	phaseStartTime = time.Now()
}

func displayEndPhase(success bool) {
	if phaseSpinner == nil {
		return
	}
	pad := strings.Repeat(" ", maxPhaseLength-len(currentPhase)+2)
	if success {
		phaseSpinner.Success(currentPhase+pad, fmt.Sprintf("(%.3fs)", time.Since(phaseStartTime).Seconds()))
	} else {
		phaseSpinner.Fail(currentPhase + pad)
	}
	phaseSpinner = nil
}

// displayFinished displays the closing summary with error and warning counts
func displayFinished(errorCount, warningCount int) {
	fmt.Print("\n")
	if errorCount == 0 {
		SuccessColorFG.Print("All done! ")
	} else {
		ErrorColorFG.Print("Oh no! ")
	}

	fmt.Print("(")
	if errorCount == 0 {
		SuccessColorFG.Print(0)
	} else {
		ErrorColorFG.Print(errorCount)
	}
	fmt.Print(plural(errorCount, " error", " errors") + ", ")

	if warningCount == 0 {
		SuccessColorFG.Print(0)
	} else {
		WarnColorFG.Print(warningCount)
	}
	fmt.Println(plural(warningCount, " warning", " warnings") + ")")
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
