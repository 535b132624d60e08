package patterns

import "otc-signal-bot/internal/market"

// Candle shape predicates. Each receives exactly the candles the rule spans.

func (d *Detector) isMorningStar(c []market.Candle) bool {
	c1, c2, c3 := c[0], c[1], c[2]

	// Long bearish, small indecision body, long bullish closing above C1 midpoint
	if !c1.IsBearish() || c1.Body() < c1.Range()*0.6 {
		return false
	}
	if c2.Body() > c1.Body()*0.4 {
		return false
	}
	if !c3.IsBullish() || c3.Body() < c3.Range()*0.6 {
		return false
	}
	return c3.Close >= (c1.Open+c1.Close)/2
}

func (d *Detector) isEveningStar(c []market.Candle) bool {
	c1, c2, c3 := c[0], c[1], c[2]

	if !c1.IsBullish() || c1.Body() < c1.Range()*0.6 {
		return false
	}
	if c2.Body() > c1.Body()*0.4 {
		return false
	}
	if !c3.IsBearish() || c3.Body() < c3.Range()*0.6 {
		return false
	}
	return c3.Close <= (c1.Open+c1.Close)/2
}

func (d *Detector) isThreeWhiteSoldiers(c []market.Candle) bool {
	for i, k := range c {
		if !k.IsBullish() || k.Body() < k.Range()*0.5 {
			return false
		}
		if i > 0 {
			prev := c[i-1]
			// Each opens inside the previous body and closes higher
			if k.Open < prev.Open || k.Open > prev.Close || k.Close <= prev.Close {
				return false
			}
		}
	}
	return true
}

func (d *Detector) isThreeBlackCrows(c []market.Candle) bool {
	for i, k := range c {
		if !k.IsBearish() || k.Body() < k.Range()*0.5 {
			return false
		}
		if i > 0 {
			prev := c[i-1]
			if k.Open > prev.Open || k.Open < prev.Close || k.Close >= prev.Close {
				return false
			}
		}
	}
	return true
}

func (d *Detector) isBullishEngulfing(c []market.Candle) bool {
	c1, c2 := c[0], c[1]
	if !c1.IsBearish() || !c2.IsBullish() {
		return false
	}
	// C2 opens at or below C1 close and closes at or above C1 open
	return c2.Open <= c1.Close && c2.Close >= c1.Open
}

func (d *Detector) isBearishEngulfing(c []market.Candle) bool {
	c1, c2 := c[0], c[1]
	if !c1.IsBullish() || !c2.IsBearish() {
		return false
	}
	return c2.Open >= c1.Close && c2.Close <= c1.Open
}

func (d *Detector) isBullishHarami(c []market.Candle) bool {
	c1, c2 := c[0], c[1]
	if !c1.IsBearish() || c1.Body() < c1.Range()*0.6 {
		return false
	}
	if !c2.IsBullish() {
		return false
	}
	// C2 body sits inside C1 body and is at most half its size
	if c2.Open < c1.Close || c2.Close > c1.Open {
		return false
	}
	return c2.Body() <= c1.Body()*0.5
}

func (d *Detector) isBearishHarami(c []market.Candle) bool {
	c1, c2 := c[0], c[1]
	if !c1.IsBullish() || c1.Body() < c1.Range()*0.6 {
		return false
	}
	if !c2.IsBearish() {
		return false
	}
	if c2.Open > c1.Close || c2.Close < c1.Open {
		return false
	}
	return c2.Body() <= c1.Body()*0.5
}

// hammerShape: long lower wick, little upper wick, non-trivial body
func hammerShape(k market.Candle) bool {
	body := k.Body()
	if body == 0 || k.Range() == 0 {
		return false
	}
	return k.LowerWick() >= body*2 && k.UpperWick() <= body*0.3
}

func invertedShape(k market.Candle) bool {
	body := k.Body()
	if body == 0 || k.Range() == 0 {
		return false
	}
	return k.UpperWick() >= body*2 && k.LowerWick() <= body*0.3
}

// Hammer after a down candle
func (d *Detector) isHammer(c []market.Candle) bool {
	return c[0].IsBearish() && hammerShape(c[1])
}

// Hanging man: hammer shape after an up candle
func (d *Detector) isHangingMan(c []market.Candle) bool {
	return c[0].IsBullish() && hammerShape(c[1])
}

// Shooting star: inverted hammer after an up candle
func (d *Detector) isShootingStar(c []market.Candle) bool {
	return c[0].IsBullish() && invertedShape(c[1])
}

func isDoji(k market.Candle) bool {
	r := k.Range()
	if r == 0 {
		return false
	}
	return k.Body()/r < 0.10
}

func (d *Detector) isDragonflyDoji(c []market.Candle) bool {
	k := c[0]
	return isDoji(k) && k.LowerWick() >= k.Range()*0.7 && k.UpperWick() <= k.Range()*0.1
}

func (d *Detector) isGravestoneDoji(c []market.Candle) bool {
	k := c[0]
	return isDoji(k) && k.UpperWick() >= k.Range()*0.7 && k.LowerWick() <= k.Range()*0.1
}

func (d *Detector) isPlainDoji(c []market.Candle) bool {
	return isDoji(c[0]) && !d.isDragonflyDoji(c) && !d.isGravestoneDoji(c)
}
