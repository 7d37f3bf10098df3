package money

// TaxedMoney pairs a net and a gross amount in one currency. Gross below net
// is representable on purpose; negative tax adjustments occur in the wild.
type TaxedMoney struct {
	Net   Money
	Gross Money
}

// NewTaxed builds a TaxedMoney from net and gross amounts sharing a currency.
func NewTaxed(net, gross Money) TaxedMoney {
	assertSameCurrency(net.Currency, gross.Currency)
	return TaxedMoney{Net: net, Gross: gross}
}

// FromMoney returns a TaxedMoney whose net and gross both equal m.
func FromMoney(m Money) TaxedMoney {
	return TaxedMoney{Net: m, Gross: m}
}

// ZeroTaxed returns a zero net/gross pair in the given currency.
func ZeroTaxed(currency string) TaxedMoney {
	return TaxedMoney{Net: Zero(currency), Gross: Zero(currency)}
}

// Currency returns the shared currency of the pair.
func (t TaxedMoney) Currency() string {
	return t.Net.Currency
}

// Add sums net with net and gross with gross.
func (t TaxedMoney) Add(other TaxedMoney) TaxedMoney {
	return TaxedMoney{Net: t.Net.Add(other.Net), Gross: t.Gross.Add(other.Gross)}
}

// SubMoney subtracts the same amount from both net and gross, e.g. a
// gift-card balance taken off a checkout total.
func (t TaxedMoney) SubMoney(m Money) TaxedMoney {
	return TaxedMoney{Net: t.Net.Sub(m), Gross: t.Gross.Sub(m)}
}

// DivInt divides both components by a whole quantity.
func (t TaxedMoney) DivInt(q int) TaxedMoney {
	return TaxedMoney{Net: t.Net.DivInt(q), Gross: t.Gross.DivInt(q)}
}

// Tax returns gross - net.
func (t TaxedMoney) Tax() Money {
	return t.Gross.Sub(t.Net)
}

// Quantize rounds net and gross independently to the currency precision.
func (t TaxedMoney) Quantize() TaxedMoney {
	return TaxedMoney{Net: t.Net.Quantize(), Gross: t.Gross.Quantize()}
}

// Equal reports component-wise equality.
func (t TaxedMoney) Equal(other TaxedMoney) bool {
	return t.Net.Equal(other.Net) && t.Gross.Equal(other.Gross)
}

// IsNegative reports whether either component is below zero.
func (t TaxedMoney) IsNegative() bool {
	return t.Net.IsNegative() || t.Gross.IsNegative()
}

func (t TaxedMoney) String() string {
	return "net=" + t.Net.String() + " gross=" + t.Gross.String()
}
