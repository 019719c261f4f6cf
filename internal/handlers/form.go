package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// formPage is the minimal browser front end: a plain HTML form that
// posts to /predict. Field names match the JSON API.
const formPage = `<!DOCTYPE html>
<html>
<head>
  <title>Booking Cancellation Predictor</title>
  <style>
    body { font-family: sans-serif; max-width: 40rem; margin: 2rem auto; }
    label { display: block; margin-top: 0.75rem; }
    input, select { width: 100%; padding: 0.3rem; }
    button { margin-top: 1rem; padding: 0.5rem 1.5rem; }
  </style>
</head>
<body>
  <h1>Booking Cancellation Predictor</h1>
  <form method="post" action="/predict">
    <label>Lead time (days) <input name="lead_time" type="number" value="45" required></label>
    <label>Room type
      <select name="room_type">
        <option>Room_Type 1</option><option>Room_Type 2</option>
        <option>Room_Type 3</option><option>Room_Type 4</option>
        <option>Room_Type 5</option><option>Room_Type 6</option>
        <option>Room_Type 7</option>
      </select>
    </label>
    <label>Adults <input name="no_of_adults" type="number" value="2" required></label>
    <label>Children <input name="no_of_children" type="number" value="0" required></label>
    <label>Weekend nights <input name="no_of_weekend_nights" type="number" value="1" required></label>
    <label>Week nights <input name="no_of_week_nights" type="number" value="4" required></label>
    <label>Meal plan
      <select name="type_of_meal_plan">
        <option>Meal Plan 1</option><option>Meal Plan 2</option>
        <option>Meal Plan 3</option><option>Not Selected</option>
      </select>
    </label>
    <label>Car parking space <input name="required_car_parking_space" type="number" value="0" required></label>
    <label>Market segment
      <select name="market_segment_type">
        <option>Online</option><option>Offline</option>
        <option>Corporate</option><option>Aviation</option>
        <option>Complementary</option>
      </select>
    </label>
    <label>Repeated guest <input name="repeated_guest" type="number" value="0" required></label>
    <label>Average price per room <input name="avg_price_per_room" type="number" step="0.01" value="120.50" required></label>
    <label>Special requests <input name="no_of_special_requests" type="number" value="1" required></label>
    <button type="submit">Predict</button>
  </form>
</body>
</html>`

func FormPage(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(formPage))
}
