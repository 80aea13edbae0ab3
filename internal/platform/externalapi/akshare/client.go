package akshare

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"unicode/utf8"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cast"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"

	"astock_backend/internal/feature/ingest/domain/entity"
	"astock_backend/internal/feature/ingest/usecase"
	"astock_backend/internal/platform/externalapi/akshare/dto"
)

// maxBodyBytes は1レスポンスで読み込む最大バイト数です。四半期スナップショットは数MBになります。
const maxBodyBytes = 64 << 20

// 数値は精度を落とさないよう json.Number のまま扱います。
var json = jsoniter.Config{UseNumber: true}.Froze()

// Client は AKTools ブリッジから市場データを取得する MarketSource 実装です。
type Client struct {
	cfg    Config
	client *http.Client
}

// ClientがMarketSourceを実装していることをコンパイル時に検証します。
var _ usecase.MarketSource = (*Client)(nil)

// NewClient は指定された設定とHTTPクライアントで Client を生成します。
func NewClient(cfg Config, client *http.Client) *Client {
	return &Client{cfg: cfg, client: client}
}

// ListAllSymbols は上場銘柄コードと名称の一覧を上流の順序で返します。
func (c *Client) ListAllSymbols(ctx context.Context) ([]entity.SymbolName, error) {
	records, err := c.call(ctx, c.cfg.ListEndpoint, nil)
	if err != nil {
		return nil, err
	}
	out := make([]entity.SymbolName, 0, len(records))
	for _, r := range records {
		out = append(out, entity.SymbolName{
			Symbol: padSymbol(cast.ToString(r["code"])),
			Name:   strings.TrimSpace(cast.ToString(r["name"])),
		})
	}
	return out, nil
}

// GetProfile は1銘柄の会社概要を返します。上流が空の表を返した場合は空のレコードを返します。
func (c *Client) GetProfile(ctx context.Context, symbol string) (entity.RawRecord, error) {
	q := url.Values{}
	q.Set("symbol", symbol)
	records, err := c.call(ctx, c.cfg.ProfileEndpoint, q)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return entity.RawRecord{}, nil
	}
	return entity.RawRecord(records[0]), nil
}

// GetQuarterSnapshot は報告日 date (YYYYMMDD) の損益計算書を返します。
func (c *Client) GetQuarterSnapshot(ctx context.Context, date string) ([]entity.RawRecord, error) {
	q := url.Values{}
	q.Set("date", date)
	records, err := c.call(ctx, c.cfg.QuarterEndpoint, q)
	if err != nil {
		return nil, err
	}
	out := make([]entity.RawRecord, 0, len(records))
	for _, r := range records {
		out = append(out, entity.RawRecord(r))
	}
	return out, nil
}

// call は /api/public/{function} を呼び出し、レコードの配列にデコードします。
func (c *Client) call(ctx context.Context, function string, q url.Values) (dto.Records, error) {
	u := fmt.Sprintf("%s/api/public/%s", strings.TrimRight(c.cfg.BaseURL, "/"), function)
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	res, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := res.Body.Close(); err != nil {
			slog.Warn("failed to close response body", "error", err)
		}
	}()

	body, err := io.ReadAll(io.LimitReader(res.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("akshare %s: read body: %w", function, err)
	}
	body, err = toUTF8(body, res.Header.Get("Content-Type"))
	if err != nil {
		return nil, fmt.Errorf("akshare %s: decode charset: %w", function, err)
	}

	if res.StatusCode >= 400 {
		var e dto.ErrorResponse
		if json.Unmarshal(body, &e) == nil && e.Message() != "" {
			return nil, fmt.Errorf("akshare %s http %d: %s", function, res.StatusCode, e.Message())
		}
		return nil, fmt.Errorf("akshare %s http %d", function, res.StatusCode)
	}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return dto.Records{}, nil
	}
	if trimmed[0] == '{' {
		var e dto.ErrorResponse
		if err := json.Unmarshal(trimmed, &e); err != nil {
			return nil, fmt.Errorf("akshare %s: decode: %w", function, err)
		}
		return nil, fmt.Errorf("akshare %s: %s", function, e.Message())
	}

	var records dto.Records
	if err := json.Unmarshal(trimmed, &records); err != nil {
		return nil, fmt.Errorf("akshare %s: decode: %w", function, err)
	}
	return records, nil
}

// toUTF8 は GBK/GB18030 のペイロードを UTF-8 に変換します。
// charset の宣言がなく UTF-8 として不正な場合も GB18030 とみなします。
func toUTF8(body []byte, contentType string) ([]byte, error) {
	charset := ""
	if _, params, err := mime.ParseMediaType(contentType); err == nil {
		charset = strings.ToLower(params["charset"])
	}
	switch charset {
	case "gbk", "gb2312", "gb18030":
	case "":
		if utf8.Valid(body) {
			return body, nil
		}
	default:
		return body, nil
	}
	return io.ReadAll(transform.NewReader(bytes.NewReader(body), simplifiedchinese.GB18030.NewDecoder()))
}

// padSymbol は数値として返された銘柄コードを6桁にゼロ埋めします。
func padSymbol(s string) string {
	s = strings.TrimSpace(s)
	if s == "" || len(s) >= 6 {
		return s
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return s
		}
	}
	return strings.Repeat("0", 6-len(s)) + s
}
