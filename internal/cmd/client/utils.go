package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

var (
	colorHeader = lipgloss.AdaptiveColor{Light: "#5A56E0", Dark: "#7571F9"}
	colorBorder = lipgloss.AdaptiveColor{Light: "#DBDBDB", Dark: "#383838"}
	colorBad    = lipgloss.AdaptiveColor{Light: "#D7263D", Dark: "#F25D94"}

	headerStyle = lipgloss.NewStyle().Foreground(colorHeader).Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	badStyle    = cellStyle.Foreground(colorBad)
)

// grpcAddrFromEnv returns the gRPC server address from FEEDGEN_GRPC or a default.
func grpcAddrFromEnv() string {
	if addr := os.Getenv("FEEDGEN_GRPC"); addr != "" {
		return addr
	}
	return "127.0.0.1:50051"
}

// dialGRPC opens a client connection with insecure transport for local/dev.
func dialGRPC(addr string) (*grpc.ClientConn, error) {
	return grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
}

var httpClient = &http.Client{Timeout: 30 * time.Second}

// getJSON fetches url and decodes a JSON body into out. Non-2xx responses
// surface the server's error message.
func getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode/100 != 2 {
		var e struct {
			Error   string `json:"error"`
			Message string `json:"message"`
		}
		if json.Unmarshal(body, &e) == nil && e.Error != "" {
			if e.Message != "" {
				return fmt.Errorf("%s: %s: %s", resp.Status, e.Error, e.Message)
			}
			return fmt.Errorf("%s: %s", resp.Status, e.Error)
		}
		return fmt.Errorf("%s", resp.Status)
	}
	return json.Unmarshal(body, out)
}

// renderTable lays rows out under headers with the CLI's styling.
// Rows for which bad returns true are highlighted.
func renderTable(headers []string, rows [][]string, bad func(row int) bool) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorBorder)).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case bad != nil && bad(row):
				return badStyle
			}
			return cellStyle
		})
	return t.Render()
}
