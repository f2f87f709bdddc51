// Package forms holds the modal forms used to add chains, wallets and tokens.
package forms

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/ethereum/go-ethereum/common"

	"evmsniper/internal/domain"
	"evmsniper/internal/ui/screen"
)

// Kind names a form
type Kind string

const (
	KindChain  Kind = "chain"
	KindWallet Kind = "wallet"
	KindToken  Kind = "token"
)

// Field keys in SubmittedMsg.Values
const (
	FieldName     = "name"
	FieldHTTP     = "http"
	FieldWS       = "ws"
	FieldChainID  = "chainId"
	FieldAddress  = "address"
	FieldContract = "contract"
)

// SubmittedMsg is sent when the user completes a form
type SubmittedMsg struct {
	Kind   Kind
	Values map[string]string
}

// CancelledMsg is sent when a form is closed without submitting
type CancelledMsg struct {
	Kind Kind
}

// Form is one modal form session
type Form struct {
	kind   Kind
	title  string
	form   *huh.Form
	values map[string]*string
	screen *screen.Screen
	open   bool
	width  int
}

var boxStyle = lipgloss.NewStyle().
	Border(lipgloss.NormalBorder()).
	BorderForeground(lipgloss.Color("241")).
	Padding(0, 1)

// NewChainForm asks for name, rpc endpoints and chain id
func NewChainForm(scr *screen.Screen) *Form {
	f := newForm(KindChain, "Add chain", scr, FieldName, FieldHTTP, FieldWS, FieldChainID)
	f.build(
		huh.NewInput().Title("Name").Value(f.values[FieldName]).Validate(required("name")),
		huh.NewInput().Title("HTTP RPC").Value(f.values[FieldHTTP]).Validate(endpoint(true, "http", "https")),
		huh.NewInput().Title("WS RPC").Value(f.values[FieldWS]).Validate(endpoint(false, "ws", "wss")),
		huh.NewInput().Title("Chain ID").Value(f.values[FieldChainID]).Validate(chainID),
	)
	return f
}

// NewWalletForm asks for a wallet name and address
func NewWalletForm(scr *screen.Screen) *Form {
	f := newForm(KindWallet, "Add wallet", scr, FieldName, FieldAddress)
	f.build(
		huh.NewInput().Title("Name").Value(f.values[FieldName]).Validate(required("name")),
		huh.NewInput().Title("Address").Value(f.values[FieldAddress]).Validate(address),
	)
	return f
}

// NewTokenForm asks for a token contract
func NewTokenForm(scr *screen.Screen) *Form {
	f := newForm(KindToken, "Add token", scr, FieldContract)
	f.build(
		huh.NewInput().Title("Contract").Value(f.values[FieldContract]).Validate(address),
	)
	return f
}

func newForm(kind Kind, title string, scr *screen.Screen, fields ...string) *Form {
	if scr == nil {
		scr = screen.New()
	}
	values := make(map[string]*string, len(fields))
	for _, name := range fields {
		values[name] = new(string)
	}
	return &Form{kind: kind, title: title, values: values, screen: scr, width: 53}
}

func (f *Form) build(fields ...huh.Field) {
	f.form = huh.NewForm(huh.NewGroup(fields...).Title(f.title)).
		WithShowHelp(false).
		WithWidth(f.width - 4)
	// completion is detected from the form state
	f.form.SubmitCmd = nil
	f.form.CancelCmd = nil
}

// Kind returns the form kind
func (f *Form) Kind() Kind { return f.kind }

// IsOpen reports whether the form is shown
func (f *Form) IsOpen() bool { return f.open }

// Open shows the form and grabs input
func (f *Form) Open() tea.Cmd {
	if f.open {
		return nil
	}
	f.open = true
	f.screen.SaveFocus()
	f.screen.Focus(nil)
	f.screen.Grab(f.owner())
	return f.form.Init()
}

// Cancel closes the form without submitting. Calling it again does nothing.
func (f *Form) Cancel() tea.Cmd {
	if !f.open {
		return nil
	}
	cmd := f.close()
	kind := f.kind
	return tea.Batch(cmd, func() tea.Msg { return CancelledMsg{Kind: kind} })
}

func (f *Form) close() tea.Cmd {
	f.open = false
	f.screen.Release(f.owner())
	return f.screen.RestoreFocus()
}

func (f *Form) owner() string { return "form:" + string(f.kind) }

// Values returns the current field values
func (f *Form) Values() map[string]string {
	out := make(map[string]string, len(f.values))
	for k, v := range f.values {
		out[k] = strings.TrimSpace(*v)
	}
	return out
}

// Update forwards input to the form. Esc cancels.
func (f *Form) Update(msg tea.Msg) tea.Cmd {
	if !f.open {
		return nil
	}
	if key, ok := msg.(tea.KeyMsg); ok && key.Type == tea.KeyEsc {
		return f.Cancel()
	}

	model, cmd := f.form.Update(msg)
	if form, ok := model.(*huh.Form); ok {
		f.form = form
	}

	switch f.form.State {
	case huh.StateCompleted:
		return tea.Batch(cmd, f.submit())
	case huh.StateAborted:
		return tea.Batch(cmd, f.Cancel())
	}
	return cmd
}

func (f *Form) submit() tea.Cmd {
	closeCmd := f.close()
	submitted := SubmittedMsg{Kind: f.kind, Values: f.Values()}
	return tea.Batch(closeCmd, func() tea.Msg { return submitted })
}

// View renders the form box
func (f *Form) View() string {
	if !f.open {
		return ""
	}
	return boxStyle.Width(f.width).Render(f.form.View())
}

// ChainFrom converts submitted values into a chain
func ChainFrom(values map[string]string) (domain.Chain, error) {
	id, err := strconv.ParseUint(values[FieldChainID], 10, 64)
	if err != nil {
		return domain.Chain{}, fmt.Errorf("invalid chain id %q: %w", values[FieldChainID], err)
	}
	return domain.Chain{
		Name:    values[FieldName],
		ChainID: id,
		RPC:     domain.RPC{HTTP: values[FieldHTTP], WS: values[FieldWS]},
	}, nil
}

// WalletFrom converts submitted values into a wallet
func WalletFrom(values map[string]string) domain.Wallet {
	return domain.Wallet{
		Name:    values[FieldName],
		Address: common.HexToAddress(values[FieldAddress]).Hex(),
	}
}

// TokenFrom converts submitted values into a token of wallet on chainID
func TokenFrom(values map[string]string, wallet string, chainID uint64) domain.Token {
	return domain.Token{
		Contract: common.HexToAddress(values[FieldContract]).Hex(),
		Wallet:   wallet,
		ChainID:  chainID,
	}
}

func required(field string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", field)
		}
		return nil
	}
}

func endpoint(mandatory bool, schemes ...string) func(string) error {
	return func(s string) error {
		s = strings.TrimSpace(s)
		if s == "" {
			if mandatory {
				return fmt.Errorf("endpoint is required")
			}
			return nil
		}
		u, err := url.Parse(s)
		if err != nil || u.Host == "" {
			return fmt.Errorf("not a valid url")
		}
		for _, scheme := range schemes {
			if u.Scheme == scheme {
				return nil
			}
		}
		return fmt.Errorf("scheme must be one of %s", strings.Join(schemes, ", "))
	}
}

func chainID(s string) error {
	id, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil || id == 0 {
		return fmt.Errorf("chain id must be a positive number")
	}
	return nil
}

func address(s string) error {
	if !common.IsHexAddress(strings.TrimSpace(s)) {
		return fmt.Errorf("not a hex address")
	}
	return nil
}
