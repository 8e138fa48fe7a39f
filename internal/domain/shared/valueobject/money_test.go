package valueobject

import (
	"encoding/json"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMoneyFromString(t *testing.T) {
	t.Run("valid string", func(t *testing.T) {
		m, err := NewMoneyFromString("123.45")
		require.NoError(t, err)
		assert.Equal(t, int64(12345), m.Minor())
	})

	t.Run("rounds half away from zero", func(t *testing.T) {
		assert.Equal(t, int64(1001), MustParseMoney("10.005").Minor())
		assert.Equal(t, int64(1000), MustParseMoney("10.004").Minor())
		assert.Equal(t, int64(-1001), MustParseMoney("-10.005").Minor())
	})

	t.Run("invalid string", func(t *testing.T) {
		_, err := NewMoneyFromString("not-a-number")
		assert.Error(t, err)
	})

	t.Run("overflow", func(t *testing.T) {
		_, err := NewMoneyFromString("999999999999999999999999")
		assert.ErrorIs(t, err, ErrAmountOverflow)
	})
}

func TestNewMoneyFromDecimal(t *testing.T) {
	m, err := NewMoneyFromDecimal(decimal.RequireFromString("1000"))
	require.NoError(t, err)
	assert.Equal(t, int64(100000), m.Minor())
	assert.True(t, m.Decimal().Equal(decimal.RequireFromString("1000.00")))
}

func TestMoney_Arithmetic(t *testing.T) {
	a := MustParseMoney("500.00")
	b := MustParseMoney("450.00")

	assert.Equal(t, "950.00", a.Add(b).String())
	assert.Equal(t, "50.00", a.Subtract(b).String())
	assert.Equal(t, "-50.00", b.Subtract(a).String())
	assert.Equal(t, "50.00", b.Subtract(a).Abs().String())
	assert.Equal(t, "-500.00", a.Negate().String())
	assert.True(t, b.Subtract(a).FloorZero().IsZero())
	assert.Equal(t, a, a.FloorZero())
}

func TestMoney_Comparison(t *testing.T) {
	small := NewMoneyFromMinor(100)
	large := NewMoneyFromMinor(200)

	assert.Equal(t, -1, small.Cmp(large))
	assert.Equal(t, 1, large.Cmp(small))
	assert.Equal(t, 0, small.Cmp(NewMoneyFromMinor(100)))
	assert.True(t, small.LessThan(large))
	assert.True(t, large.GreaterThan(small))
	assert.True(t, small.Equals(NewMoneyFromMinor(100)))
	assert.True(t, Zero().IsZero())
	assert.True(t, small.IsPositive())
	assert.True(t, small.Negate().IsNegative())
}

func TestMoney_SplitRounded(t *testing.T) {
	tests := []struct {
		name     string
		total    string
		n        int
		expected []string
	}{
		{"drift on last part", "100.00", 3, []string{"33.33", "33.33", "33.34"}},
		{"negative drift on last part", "200.00", 3, []string{"66.67", "66.67", "66.66"}},
		{"even split", "90.00", 3, []string{"30.00", "30.00", "30.00"}},
		{"single part", "12.34", 1, []string{"12.34"}},
		{"half cent rounds up", "0.05", 2, []string{"0.03", "0.02"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parts, err := MustParseMoney(tt.total).SplitRounded(tt.n)
			require.NoError(t, err)
			require.Len(t, parts, len(tt.expected))
			for i, want := range tt.expected {
				assert.Equal(t, want, parts[i].String(), "part %d", i)
			}
		})
	}

	t.Run("rejects zero parts", func(t *testing.T) {
		_, err := MustParseMoney("1.00").SplitRounded(0)
		assert.ErrorIs(t, err, ErrInvalidSplit)
	})
}

func TestMoney_DivideEvenly(t *testing.T) {
	per, rem, err := MustParseMoney("100.01").DivideEvenly(2)
	require.NoError(t, err)
	assert.Equal(t, "50.00", per.String())
	assert.Equal(t, "0.01", rem.String())

	_, _, err = MustParseMoney("1.00").DivideEvenly(0)
	assert.ErrorIs(t, err, ErrInvalidSplit)
}

func TestMoney_JSON(t *testing.T) {
	t.Run("marshals as fixed string", func(t *testing.T) {
		data, err := json.Marshal(MustParseMoney("1000"))
		require.NoError(t, err)
		assert.Equal(t, `"1000.00"`, string(data))
	})

	t.Run("unmarshals string and number", func(t *testing.T) {
		var fromString, fromNumber Money
		require.NoError(t, json.Unmarshal([]byte(`"33.34"`), &fromString))
		require.NoError(t, json.Unmarshal([]byte(`33.34`), &fromNumber))
		assert.Equal(t, int64(3334), fromString.Minor())
		assert.Equal(t, fromString, fromNumber)
	})

	t.Run("rejects garbage", func(t *testing.T) {
		var m Money
		assert.Error(t, json.Unmarshal([]byte(`{}`), &m))
	})
}

func TestMoney_ValueAndScan(t *testing.T) {
	v, err := MustParseMoney("12.50").Value()
	require.NoError(t, err)
	assert.Equal(t, "12.50", v)

	tests := []struct {
		name  string
		input any
		want  int64
	}{
		{"string", "12.50", 1250},
		{"bytes", []byte("0.01"), 1},
		{"int", int64(3), 300},
		{"float", 99.99, 9999},
		{"nil", nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var m Money
			require.NoError(t, m.Scan(tt.input))
			assert.Equal(t, tt.want, m.Minor())
		})
	}

	var m Money
	assert.Error(t, m.Scan(true))
}

func TestMoney_SplitRoundedProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("parts always sum to the total", prop.ForAll(
		func(minor int64, n int) bool {
			total := NewMoneyFromMinor(minor)
			parts, err := total.SplitRounded(n)
			if err != nil {
				return false
			}
			sum := Zero()
			for _, p := range parts {
				sum = sum.Add(p)
			}
			return sum.Equals(total)
		},
		gen.Int64Range(1, 1_000_000_000_00),
		gen.IntRange(1, 600),
	))

	properties.Property("only the last part differs from the rounded share", prop.ForAll(
		func(minor int64, n int) bool {
			parts, err := NewMoneyFromMinor(minor).SplitRounded(n)
			if err != nil {
				return false
			}
			for i := 1; i < n-1; i++ {
				if !parts[i].Equals(parts[0]) {
					return false
				}
			}
			return true
		},
		gen.Int64Range(1, 1_000_000_00),
		gen.IntRange(1, 120),
	))

	properties.Property("divide evenly conserves the amount", prop.ForAll(
		func(minor int64, n int) bool {
			per, rem, err := NewMoneyFromMinor(minor).DivideEvenly(n)
			if err != nil {
				return false
			}
			return per.Minor()*int64(n)+rem.Minor() == minor && rem.Minor() < int64(n)
		},
		gen.Int64Range(0, 1_000_000_000_00),
		gen.IntRange(1, 50),
	))

	properties.TestingRun(t)
}
