package locale

import (
	"fmt"

	"golang.org/x/text/language"
)

var germanNames = map[string]string{
	"ABS": "ABS", "AND": "UND", "AVERAGE": "MITTELWERT", "AVERAGEIF": "MITTELWERTWENN",
	"AVERAGEIFS": "MITTELWERTWENNS", "CHOOSE": "WAHL", "COLUMN": "SPALTE", "COLUMNS": "SPALTEN",
	"CONCATENATE": "VERKETTEN", "COUNT": "ANZAHL", "COUNTA": "ANZAHL2", "COUNTBLANK": "ANZAHLLEEREZELLEN",
	"COUNTIF": "ZÄHLENWENN", "COUNTIFS": "ZÄHLENWENNS", "DATE": "DATUM", "DAY": "TAG",
	"EDATE": "EDATUM", "EOMONTH": "MONATSENDE", "EXACT": "IDENTISCH", "FALSE": "FALSCH",
	"IF": "WENN", "IFERROR": "WENNFEHLER", "IFNA": "WENNNV", "IFS": "WENNS",
	"INDIRECT": "INDIREKT", "INT": "GANZZAHL", "ISBLANK": "ISTLEER", "ISERROR": "ISTFEHLER",
	"ISNA": "ISTNV", "ISNUMBER": "ISTZAHL", "ISTEXT": "ISTTEXT", "LEFT": "LINKS",
	"LEN": "LÄNGE", "LOWER": "KLEIN", "MATCH": "VERGLEICH", "MID": "TEIL",
	"MOD": "REST", "MONTH": "MONAT", "NA": "NV", "NOT": "NICHT",
	"NOW": "JETZT", "OFFSET": "BEREICH.VERSCHIEBEN", "OR": "ODER", "POWER": "POTENZ",
	"PRODUCT": "PRODUKT", "REPT": "WIEDERHOLEN", "RIGHT": "RECHTS", "ROUND": "RUNDEN",
	"ROUNDDOWN": "ABRUNDEN", "ROUNDUP": "AUFRUNDEN", "ROW": "ZEILE", "ROWS": "ZEILEN",
	"SEQUENCE": "SEQUENZ", "SIGN": "VORZEICHEN", "SORT": "SORTIEREN", "SQRT": "WURZEL",
	"SUM": "SUMME", "SUMIF": "SUMMEWENN", "SUMIFS": "SUMMEWENNS", "SUMPRODUCT": "SUMMENPRODUKT",
	"SWITCH": "ERSTERWERT", "TEXTJOIN": "TEXTVERKETTEN", "TODAY": "HEUTE", "TRANSPOSE": "MTRANS",
	"TRIM": "GLÄTTEN", "TRUE": "WAHR", "UNIQUE": "EINDEUTIG", "UPPER": "GROSS",
	"VALUE": "WERT", "VLOOKUP": "SVERWEIS", "WEEKDAY": "WOCHENTAG", "XLOOKUP": "XVERWEIS",
	"XOR": "XODER", "YEAR": "JAHR",
}

var frenchNames = map[string]string{
	"AND": "ET", "AVERAGE": "MOYENNE", "AVERAGEIF": "MOYENNE.SI", "CHOOSE": "CHOISIR",
	"COLUMN": "COLONNE", "CONCATENATE": "CONCATENER", "COUNT": "NB", "COUNTA": "NBVAL",
	"COUNTIF": "NB.SI", "COUNTIFS": "NB.SI.ENS", "DAY": "JOUR", "FALSE": "FAUX",
	"FILTER": "FILTRE", "IF": "SI", "IFERROR": "SIERREUR", "IFS": "SI.CONDITIONS",
	"INT": "ENT", "ISBLANK": "ESTVIDE", "ISERROR": "ESTERREUR", "ISNUMBER": "ESTNUM",
	"LEFT": "GAUCHE", "LEN": "NBCAR", "LOWER": "MINUSCULE", "MATCH": "EQUIV",
	"MID": "STXT", "MONTH": "MOIS", "NOT": "NON", "NOW": "MAINTENANT",
	"OFFSET": "DECALER", "OR": "OU", "POWER": "PUISSANCE", "PRODUCT": "PRODUIT",
	"RIGHT": "DROITE", "ROUND": "ARRONDI", "ROW": "LIGNE", "SORT": "TRIER",
	"SQRT": "RACINE", "SUM": "SOMME", "SUMIF": "SOMME.SI", "SUMIFS": "SOMME.SI.ENS",
	"SUMPRODUCT": "SOMMEPROD", "TEXTJOIN": "JOINDRE.TEXTE", "TODAY": "AUJOURDHUI", "TRIM": "SUPPRESPACE",
	"TRUE": "VRAI", "UPPER": "MAJUSCULE", "VLOOKUP": "RECHERCHEV", "XLOOKUP": "RECHERCHEX",
	"YEAR": "ANNEE",
}

var (
	canonical = mustNew(language.AmericanEnglish, '.', 0, ',', ',', ';', nil)
	german    = mustNew(language.MustParse("de-DE"), ',', '.', ';', ';', '|', germanNames)
	french    = mustNew(language.MustParse("fr-FR"), ',', '\u00a0', ';', ';', '|', frenchNames)
)

func mustNew(tag language.Tag, decimal, group, arg, col, row rune, names map[string]string) *Locale {
	l, err := New(tag, decimal, group, arg, col, row, names)
	if err != nil {
		panic(err)
	}
	return l
}

// Canonical returns the en-US locale used for canonical formula text.
func Canonical() *Locale { return canonical }

// German returns the de-DE locale.
func German() *Locale { return german }

// French returns the fr-FR locale.
func French() *Locale { return french }

var matcher = language.NewMatcher([]language.Tag{
	canonical.Tag,
	german.Tag,
	french.Tag,
})

// ForTag resolves a BCP 47 tag such as "de", "de-AT" or "en-GB" to the
// closest predefined locale.
func ForTag(tag string) (*Locale, error) {
	if tag == "" {
		return canonical, nil
	}
	parsed, err := language.Parse(tag)
	if err != nil {
		return nil, fmt.Errorf("invalid locale tag %q: %w", tag, err)
	}
	_, idx, conf := matcher.Match(parsed)
	if conf == language.No {
		return nil, fmt.Errorf("no formula locale for %q", tag)
	}
	return []*Locale{canonical, german, french}[idx], nil
}
