package tokenizer

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
)

// Hugging Face tokenizer files that carry special token definitions.
const (
	TokenizerJSON        = "tokenizer.json"
	TokenizerConfigJSON  = "tokenizer_config.json"
	SpecialTokensMapJSON = "special_tokens_map.json"
)

// SpecialTokenFiles lists the files LoadSpecialTokens reads, in the order they are
// fetched from a remote repository.
var SpecialTokenFiles = []string{TokenizerConfigJSON, SpecialTokensMapJSON, TokenizerJSON}

var ErrNoMaskToken = errors.New("tokenizer defines no mask token")

// SpecialTokens holds the literal text of a tokenizer's special tokens.
type SpecialTokens struct {
	Mask string
	Pad  string
	Unk  string
	CLS  string
	SEP  string
	BOS  string
	EOS  string
}

// MaskToken returns the mask token or ErrNoMaskToken.
func (s SpecialTokens) MaskToken() (string, error) {
	if s.Mask == "" {
		return "", ErrNoMaskToken
	}
	return s.Mask, nil
}

// tokenValue accepts both "<mask>" and {"content": "<mask>", "lstrip": true, ...}.
type tokenValue string

func (v *tokenValue) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*v = tokenValue(s)
		return nil
	}
	var obj struct {
		Content string `json:"content"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	*v = tokenValue(obj.Content)
	return nil
}

type specialTokensJSON struct {
	Mask tokenValue `json:"mask_token"`
	Pad  tokenValue `json:"pad_token"`
	Unk  tokenValue `json:"unk_token"`
	CLS  tokenValue `json:"cls_token"`
	SEP  tokenValue `json:"sep_token"`
	BOS  tokenValue `json:"bos_token"`
	EOS  tokenValue `json:"eos_token"`
}

type addedTokensJSON struct {
	AddedTokens []struct {
		ID      int    `json:"id"`
		Content string `json:"content"`
		Special bool   `json:"special"`
	} `json:"added_tokens"`
}

// ParseSpecialTokensBytes merges special tokens from the raw contents of
// tokenizer_config.json, special_tokens_map.json and tokenizer.json. Earlier files
// win; nil inputs are skipped. A mask token is required.
func ParseSpecialTokensBytes(tokConfig, specialMap, tokJSON []byte) (SpecialTokens, error) {
	var out SpecialTokens
	for _, src := range []struct {
		name string
		data []byte
	}{
		{TokenizerConfigJSON, tokConfig},
		{SpecialTokensMapJSON, specialMap},
	} {
		if len(src.data) == 0 {
			continue
		}
		var st specialTokensJSON
		if err := json.Unmarshal(src.data, &st); err != nil {
			return SpecialTokens{}, fmt.Errorf("parse %s: %w", src.name, err)
		}
		fill(&out.Mask, st.Mask)
		fill(&out.Pad, st.Pad)
		fill(&out.Unk, st.Unk)
		fill(&out.CLS, st.CLS)
		fill(&out.SEP, st.SEP)
		fill(&out.BOS, st.BOS)
		fill(&out.EOS, st.EOS)
	}

	if out.Mask == "" && len(tokJSON) > 0 {
		var tj addedTokensJSON
		if err := json.Unmarshal(tokJSON, &tj); err != nil {
			return SpecialTokens{}, fmt.Errorf("parse %s: %w", TokenizerJSON, err)
		}
		for _, at := range tj.AddedTokens {
			if at.Special && strings.Contains(strings.ToLower(at.Content), "mask") {
				out.Mask = at.Content
				break
			}
		}
	}

	if out.Mask == "" {
		return out, ErrNoMaskToken
	}
	return out, nil
}

func fill(dst *string, v tokenValue) {
	if *dst == "" && v != "" {
		*dst = string(v)
	}
}

// LoadSpecialTokens reads whichever tokenizer files exist in dir.
func LoadSpecialTokens(dir string) (SpecialTokens, error) {
	read := func(name string) ([]byte, error) {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return data, err
	}
	tokConfig, err := read(TokenizerConfigJSON)
	if err != nil {
		return SpecialTokens{}, err
	}
	specialMap, err := read(SpecialTokensMapJSON)
	if err != nil {
		return SpecialTokens{}, err
	}
	tokJSON, err := read(TokenizerJSON)
	if err != nil {
		return SpecialTokens{}, err
	}
	if tokConfig == nil && specialMap == nil && tokJSON == nil {
		return SpecialTokens{}, fmt.Errorf("no tokenizer files in %s", dir)
	}
	return ParseSpecialTokensBytes(tokConfig, specialMap, tokJSON)
}
