package tools

type property map[string]any

func str(desc string) property {
	return property{"type": "string", "description": desc}
}

func num(desc string) property {
	return property{"type": "number", "description": desc}
}

func integer(desc string) property {
	return property{"type": "integer", "description": desc}
}

func enum(desc string, values ...string) property {
	return property{"type": "string", "description": desc, "enum": values}
}

func object(props map[string]property, required ...string) map[string]any {
	p := make(map[string]any, len(props))
	for k, v := range props {
		p[k] = map[string]any(v)
	}
	if required == nil {
		required = []string{}
	}
	return map[string]any{
		"type":       "object",
		"properties": p,
		"required":   required,
	}
}

func noArgs() map[string]any {
	return object(nil)
}

var (
	symbolProp     = str("Stock ticker symbol, e.g. AAPL.")
	qtyProp        = num("Quantity. Fractional shares are allowed for market orders.")
	limitPriceProp = num("Limit price in dollars.")
	stopLossProp   = num("Stop loss price in dollars.")
	orderIDProp    = str("Broker order id.")

	underlyingProp = str("Underlying stock symbol, 1-5 letters.")
	expirationProp = str("Option expiration date, YYYY-MM-DD.")
	optionTypeProp = enum("Option type: C for call, P for put.", "C", "P")
	strikeProp     = num("Strike price in dollars.")
	contractsProp  = num("Number of option contracts.")
)

func optionProps(extra map[string]property) map[string]property {
	props := map[string]property{
		"underlying":  underlyingProp,
		"expiration":  expirationProp,
		"option_type": optionTypeProp,
		"strike":      strikeProp,
		"qty":         contractsProp,
	}
	for k, v := range extra {
		props[k] = v
	}
	return props
}

var optionRequired = []string{"underlying", "expiration", "option_type", "strike", "qty"}
