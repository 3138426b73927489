package runtime

import "fmt"

// Kind identifies the datatype of a cell's content. The numbering is not
// arbitrary: a cell's kind byte encodes `kind + 64*quoteDepth` for quote
// depths up to 3, so every primitive kind must fit in the low band of 64
// values. Values at depth 4 and beyond fall back to KindQuoted, which boxes
// the content out-of-line (see quoting.go).
//
// Pseudo-kinds (parameter classes) live above KindMax but still inside the
// band. They never appear in user-visible values and refuse quoting.
type Kind byte

const (
	// KindZero is the trash/end marker. Cells fresh out of the allocator
	// hold it; no valid value ever does.
	KindZero Kind = iota

	KindNulled
	KindVoid
	KindBlank

	// Scalars: no owned references.
	KindLogic
	KindInteger
	KindDecimal
	KindPercent
	KindMoney
	KindChar
	KindPair
	KindTuple
	KindTime
	KindDate
	KindDatatype
	KindTypeset

	// Single-reference kinds: payload slot 0 owns one series node.
	KindBitset
	KindMap
	KindHandle
	KindBinary
	KindText
	KindFile
	KindEmail
	KindURL
	KindTag
	KindIssue

	// Bindable kinds begin here. Contexts...
	KindObject
	KindModule
	KindError
	KindFrame
	KindPort

	// ...arrays...
	KindBlock
	KindSetBlock
	KindGetBlock
	KindSymBlock
	KindGroup
	KindSetGroup
	KindGetGroup
	KindSymGroup
	KindPath
	KindSetPath
	KindGetPath
	KindSymPath

	// ...and words.
	KindWord
	KindSetWord
	KindGetWord
	KindSymWord

	KindAction

	// KindQuoted is the boxing sentinel: quote depth exceeded 3, so the
	// real kind and content live in a one-cell box referenced by the
	// payload. A box's content never has this kind itself.
	KindQuoted

	// KindMax is the ceiling for real datatypes. It must never reach
	// kindBand or the in-cell quoting encoding breaks.
	KindMax

	// Parameter classes for action paramlists (pseudo-kinds).
	KindParamNormal
	KindParamHardQuote
	KindParamSoftQuote
	KindParamLocal
	KindParamReturn

	kindPseudoMax
)

// kindBand is the stride of the quote-depth encoding in the kind byte.
// Depth d (0..3) stores `kind + 64*d`.
const kindBand = 64

func init() {
	if kindPseudoMax > kindBand {
		panic("kind: datatype table overflows the 64-value quoting band")
	}
}

var kindNames = map[Kind]string{
	KindZero:     "zero!",
	KindNulled:   "null",
	KindVoid:     "void!",
	KindBlank:    "blank!",
	KindLogic:    "logic!",
	KindInteger:  "integer!",
	KindDecimal:  "decimal!",
	KindPercent:  "percent!",
	KindMoney:    "money!",
	KindChar:     "char!",
	KindPair:     "pair!",
	KindTuple:    "tuple!",
	KindTime:     "time!",
	KindDate:     "date!",
	KindDatatype: "datatype!",
	KindTypeset:  "typeset!",
	KindBitset:   "bitset!",
	KindMap:      "map!",
	KindHandle:   "handle!",
	KindBinary:   "binary!",
	KindText:     "text!",
	KindFile:     "file!",
	KindEmail:    "email!",
	KindURL:      "url!",
	KindTag:      "tag!",
	KindIssue:    "issue!",
	KindObject:   "object!",
	KindModule:   "module!",
	KindError:    "error!",
	KindFrame:    "frame!",
	KindPort:     "port!",
	KindBlock:    "block!",
	KindSetBlock: "set-block!",
	KindGetBlock: "get-block!",
	KindSymBlock: "sym-block!",
	KindGroup:    "group!",
	KindSetGroup: "set-group!",
	KindGetGroup: "get-group!",
	KindSymGroup: "sym-group!",
	KindPath:     "path!",
	KindSetPath:  "set-path!",
	KindGetPath:  "get-path!",
	KindSymPath:  "sym-path!",
	KindWord:     "word!",
	KindSetWord:  "set-word!",
	KindGetWord:  "get-word!",
	KindSymWord:  "sym-word!",
	KindAction:   "action!",
	KindQuoted:   "quoted!",

	KindParamNormal:    "param-normal",
	KindParamHardQuote: "param-hard-quote",
	KindParamSoftQuote: "param-soft-quote",
	KindParamLocal:     "param-local",
	KindParamReturn:    "param-return",
}

// String returns the dialect-facing name of the kind.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", byte(k))
}

// IsValid reports whether k names a real datatype (not a pseudo-kind and
// not the trash marker).
func (k Kind) IsValid() bool {
	return k > KindZero && k < KindMax
}

// IsPseudo reports whether k is a parameter-class pseudo-kind.
func (k Kind) IsPseudo() bool {
	return k > KindMax && k < kindPseudoMax
}

// IsBindable reports whether cells of this kind carry a live binding
// reference. Unbindable cells treat the binding field as inert storage.
func (k Kind) IsBindable() bool {
	return k >= KindObject && k <= KindQuoted
}

// IsScalar reports whether cells of this kind own no series references.
func (k Kind) IsScalar() bool {
	return k >= KindNulled && k <= KindTypeset
}

// IsSingleRef reports whether payload slot 0 is the kind's one owned
// series reference.
func (k Kind) IsSingleRef() bool {
	return k >= KindBitset && k <= KindIssue
}

// IsContext reports whether cells of this kind reference a context
// varlist in payload slot 0.
func (k Kind) IsContext() bool {
	return k >= KindObject && k <= KindPort
}

// IsArray reports whether cells of this kind reference a cell array in
// payload slot 0.
func (k Kind) IsArray() bool {
	return k >= KindBlock && k <= KindSymPath
}

// IsPath reports whether k is one of the path variants. Paths are arrays
// whose elements are guaranteed to never themselves be paths.
func (k Kind) IsPath() bool {
	return k >= KindPath && k <= KindSymPath
}

// IsWord reports whether cells of this kind name a variable via a symbol
// in payload slot 0 and an index in slot 1.
func (k Kind) IsWord() bool {
	return k >= KindWord && k <= KindSymWord
}
